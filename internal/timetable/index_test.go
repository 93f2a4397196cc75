package timetable_test

import (
	"testing"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/citytest"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

func newIndex(t *testing.T) *timetable.Index {
	t.Helper()
	ix, err := timetable.New(citytest.MustDemo())
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	return ix
}

func TestBoard(t *testing.T) {
	ix := newIndex(t)
	noExpress := timetable.RouteFilter{Exclude: []string{"Express"}}

	tests := []struct {
		name     string
		station  string
		at       clock.Clock
		filter   timetable.RouteFilter
		wantCode string
		wantTime string
	}{
		{"next express", "Alpha", clock.New(8, 1, 0), timetable.RouteFilter{}, "1XH005", "08:05"},
		{"express excluded", "Alpha", clock.New(8, 1, 0), noExpress, "1EH014", "08:10"},
		{"exact time boards", "Alpha", clock.New(8, 0, 0), timetable.RouteFilter{}, "1EH013", "08:00"},
		{"express does not call at Beta", "Beta", clock.New(8, 4, 0), timetable.RouteFilter{}, "1EH014", "08:13"},
		{"last train crosses midnight", "Gamma", clock.New(23, 59, 0), timetable.RouteFilter{}, "1EH108", "next-day 00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ix.Board("Line 1", "East-bound", "Weekend", tt.station, tt.at, tt.filter)
			if !ok {
				t.Fatal("expected a train")
			}
			if c.Train.Code != tt.wantCode {
				t.Errorf("expected train %s, got %s", tt.wantCode, c.Train.Code)
			}
			if c.Time.String() != tt.wantTime {
				t.Errorf("expected time %s, got %s", tt.wantTime, c.Time)
			}
		})
	}
}

func TestBoardAtTerminus(t *testing.T) {
	ix := newIndex(t)

	if c, ok := ix.Board("Line 1", "East-bound", "Weekend", "East-Gate", clock.New(8, 0, 0), timetable.RouteFilter{}); ok {
		t.Errorf("no train leaves East-Gate east-bound, got %s", c.Train.Code)
	}
	// Line 2 trains end at South-End but continue onto Line 5
	c, ok := ix.Board("Line 2", "South-bound", "Weekend", "South-End", clock.New(8, 0, 0), timetable.RouteFilter{})
	if !ok {
		t.Fatal("expected a through-running train at South-End")
	}
	if !c.Final() {
		t.Errorf("expected the final call of a Line 2 train, got position %d", c.Pos)
	}
	if c.Time.String() != "08:01" {
		t.Errorf("expected 08:01, got %s", c.Time)
	}
}

func TestDepartures(t *testing.T) {
	ix := newIndex(t)

	calls := ix.Departures("Line 1", "East-bound", "Weekend", "Alpha", clock.New(8, 0, 0), timetable.RouteFilter{}, 4)
	want := []string{"08:00", "08:05", "08:10", "08:20"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d departures, got %d", len(want), len(calls))
	}
	for i, c := range calls {
		if c.Time.String() != want[i] {
			t.Errorf("departure %d: expected %s, got %s", i, want[i], c.Time)
		}
	}
}

func TestServiceDay(t *testing.T) {
	ix := newIndex(t)

	sat, err := ix.ServiceDay(citytest.Date(citytest.Saturday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g, ok := sat.Group("Line 1"); !ok || g != "Weekend" {
		t.Errorf("expected Line 1 on Weekend, got %q (%v)", g, ok)
	}
	if _, ok := sat.Group("Commuter Line"); ok {
		t.Error("Commuter Line should not run on Saturday")
	}

	mon, err := ix.ServiceDay(citytest.Date(citytest.Monday))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g, ok := mon.Group("Commuter Line"); !ok || g != "Weekday" {
		t.Errorf("expected Commuter Line on Weekday, got %q (%v)", g, ok)
	}
}

func TestRouteFilter(t *testing.T) {
	local := &city.Train{Code: "L"}
	express := &city.Train{Code: "X", Routes: []string{"Express"}}
	shortTurn := &city.Train{Code: "S", Routes: []string{"Short-turn"}}

	tests := []struct {
		name   string
		filter timetable.RouteFilter
		train  *city.Train
		want   bool
	}{
		{"zero filter accepts tagged", timetable.RouteFilter{}, express, true},
		{"zero filter accepts untagged", timetable.RouteFilter{}, local, true},
		{"exclude drops tagged", timetable.RouteFilter{Exclude: []string{"Express"}}, express, false},
		{"exclude keeps others", timetable.RouteFilter{Exclude: []string{"Express"}}, shortTurn, true},
		{"include keeps tagged", timetable.RouteFilter{Include: []string{"Express"}}, express, true},
		{"include drops untagged", timetable.RouteFilter{Include: []string{"Express"}}, local, false},
		{"include wins over exclude", timetable.RouteFilter{Include: []string{"Express"}, Exclude: []string{"Express"}}, express, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Accepts(tt.train); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
