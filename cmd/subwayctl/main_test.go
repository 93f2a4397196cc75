package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

const demoCity = "../../data/city.yaml"

// execute runs the command tree against the demo city and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--city", demoCity}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"lines", []string{"lines"}, []string{"Line 1\n", "Circle Line\n", "Commuter Line\n"}},
		{"stations of a line", []string{"stations", "Line 3"}, []string{"West-Plaza\n", "Delta\n", "Omega\n"}},
		{"directions between stations", []string{"directions", "Line 1", "--from", "Mid", "--to", "Alpha"}, []string{"Line 1 West-bound"}},
		{"plan", []string{"plan", "Alpha", "Zeta", "--date", "2024-06-01", "--time", "08:00"}, []string{"Alpha -> Zeta", "08:21", "1 transfer"}},
		{"timetable", []string{"timetable", "Mid", "--date", "2024-06-01", "--line", "Line 1", "--time", "23:50", "--count", "1"}, []string{"1EH108"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, out)
				}
			}
		})
	}
}

func TestTrainJSON(t *testing.T) {
	out, err := execute(t, "--json", "train", "Line 1", "--date", "2024-06-01", "--code", "1EH013")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var detail struct {
		Code    string `json:"code"`
		Minutes int    `json:"minutes"`
	}
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if detail.Code != "1EH013" || detail.Minutes != 13 {
		t.Errorf("expected 1EH013 running 13 minutes, got %+v", detail)
	}
}

func TestCommandErrors(t *testing.T) {
	if _, err := execute(t, "stations", "No Such Line"); !errors.Is(err, city.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown line, got %v", err)
	}
	if _, err := execute(t, "plan", "Alpha"); err == nil {
		t.Error("expected an argument error for a single station")
	}
}
