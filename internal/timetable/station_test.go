package timetable_test

import (
	"errors"
	"testing"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/citytest"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

func TestThroughIndex(t *testing.T) {
	ix := newIndex(t)
	c := ix.City()

	// 89 runs per date group on each of the two specs
	if got := ix.Through().Len(); got != 178 {
		t.Errorf("expected 178 through trains, got %d", got)
	}

	first := c.Lines["Line 2"].TrainsFor("South-bound", "Weekend")[0]
	next, ok := ix.Through().Next(first)
	if !ok {
		t.Fatalf("expected %s to continue", first.Code)
	}
	if next.Line != "Line 5" || next.Code != "5SH001" {
		t.Errorf("expected Line 5 5SH001, got %s %s", next.Line, next.Code)
	}
	tt, ok := ix.Through().Of(next)
	if !ok {
		t.Fatal("expected the continuation to belong to a through train")
	}
	if codes := tt.Codes(); len(codes) != 2 || codes[0] != "2SH001" {
		t.Errorf("unexpected through codes %v", codes)
	}

	landward := c.Lines["Line 5"].TrainsFor("Landward", "Weekend")[0]
	if _, ok := ix.Through().Next(landward); ok {
		t.Error("Landward trains do not run through")
	}
}

func TestExplicitThroughTrains(t *testing.T) {
	c := citytest.MustDemo()
	c.ThroughSpecs = []*city.ThroughSpec{{
		Name: "explicit",
		Segments: []city.ThroughSegment{
			{Line: "Line 2", Direction: "South-bound", DateGroup: "Weekend"},
			{Line: "Line 5", Direction: "Seaward", DateGroup: "Weekend"},
		},
		Trains: [][]string{{"2SH001", "5SH001"}},
	}}
	ix, err := timetable.New(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ix.Through().Len(); got != 1 {
		t.Errorf("expected one through train, got %d", got)
	}

	// 5SH002 leaves South-End before 2SH003 arrives
	c.ThroughSpecs[0].Trains = [][]string{{"2SH003", "5SH002"}}
	if _, err := timetable.New(c); !errors.Is(err, city.ErrInvalid) {
		t.Errorf("expected ErrInvalid for a broken join, got %v", err)
	}

	c.ThroughSpecs[0].Trains = [][]string{{"2SH001", "5SH999"}}
	if _, err := timetable.New(c); !errors.Is(err, city.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown code, got %v", err)
	}
}

func TestStationTimetable(t *testing.T) {
	ix := newIndex(t)
	sat := citytest.Date(citytest.Saturday)

	t.Run("late evening keeps the last train", func(t *testing.T) {
		after := clock.New(23, 55, 0)
		blocks, err := ix.StationTimetable("Mid", sat, timetable.StationFilter{Line: "Line 1", Direction: "East-bound", After: &after})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blocks) != 1 || len(blocks[0].Entries) != 1 {
			t.Fatalf("expected one block with one train, got %+v", blocks)
		}
		e := blocks[0].Entries[0]
		if e.Train.Code != "1EH108" || !e.LastTrain {
			t.Errorf("expected last train 1EH108, got %s (last=%v)", e.Train.Code, e.LastTrain)
		}
	})

	t.Run("exactly one last train per block", func(t *testing.T) {
		blocks, err := ix.StationTimetable("Mid", sat, timetable.StationFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blocks) != 4 {
			t.Fatalf("expected 4 blocks at Mid, got %d", len(blocks))
		}
		for _, b := range blocks {
			last := 0
			for i, e := range b.Entries {
				if e.LastTrain {
					last++
				}
				if i > 0 && e.Time.Before(b.Entries[i-1].Time) {
					t.Errorf("%s %s: entries out of order", b.Line, b.Direction)
				}
			}
			if last != 1 {
				t.Errorf("%s %s: expected one last train, got %d", b.Line, b.Direction, last)
			}
		}
	})

	t.Run("destination and count", func(t *testing.T) {
		after := clock.New(8, 0, 0)
		blocks, err := ix.StationTimetable("Alpha", sat, timetable.StationFilter{
			Line: "Line 1", Destination: "Beta", After: &after, Count: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blocks) != 2 {
			t.Fatalf("expected both Line 1 directions, got %d blocks", len(blocks))
		}
		east := blocks[0]
		if len(east.Entries) != 2 {
			t.Fatalf("expected 2 trains, got %d", len(east.Entries))
		}
		for i, want := range []string{"08:00", "08:10"} {
			if got := east.Entries[i].Time.String(); got != want {
				t.Errorf("entry %d: expected %s, got %s", i, want, got)
			}
		}
		if len(blocks[1].Entries) != 0 {
			t.Errorf("west-bound trains end at Alpha and never reach Beta, got %d", len(blocks[1].Entries))
		}
	})

	t.Run("destination through a through train", func(t *testing.T) {
		blocks, err := ix.StationTimetable("Zeta", sat, timetable.StationFilter{Line: "Line 2", Direction: "South-bound", Destination: "Harbor"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blocks) != 1 || len(blocks[0].Entries) != 89 {
			t.Fatalf("expected every south-bound train to reach Harbor, got %+v", len(blocks))
		}
	})

	t.Run("terminating marker", func(t *testing.T) {
		blocks, err := ix.StationTimetable("East-Gate", sat, timetable.StationFilter{Line: "Line 1", Direction: "East-bound"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, e := range blocks[0].Entries {
			if !e.Terminating {
				t.Fatalf("train %s should terminate at East-Gate", e.Train.Code)
			}
		}
		through, err := ix.StationTimetable("South-End", sat, timetable.StationFilter{Line: "Line 2", Direction: "South-bound"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if e := through[0].Entries[0]; e.Terminating {
			t.Errorf("train %s continues onto Line 5", e.Train.Code)
		}
	})

	t.Run("loop trains listed once", func(t *testing.T) {
		blocks, err := ix.StationTimetable("Beta", sat, timetable.StationFilter{Line: "Circle Line", Direction: "Inner"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen := make(map[string]bool)
		for _, e := range blocks[0].Entries {
			if seen[e.Train.Code] {
				t.Fatalf("train %s listed twice", e.Train.Code)
			}
			seen[e.Train.Code] = true
			if e.Pos != 0 {
				t.Errorf("train %s should be listed at its departure", e.Train.Code)
			}
		}
	})

	t.Run("no service", func(t *testing.T) {
		blocks, err := ix.StationTimetable("Alpha", sat, timetable.StationFilter{Line: "Commuter Line"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(blocks) != 2 || !blocks[0].NoService || len(blocks[0].Entries) != 0 {
			t.Errorf("expected empty no-service blocks, got %+v", blocks)
		}
	})

	t.Run("unknown station", func(t *testing.T) {
		if _, err := ix.StationTimetable("Nowhere", sat, timetable.StationFilter{}); !errors.Is(err, city.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
