package city_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/citytest"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

func TestDetermineDateGroup(t *testing.T) {
	c := citytest.MustDemo()

	tests := []struct {
		name    string
		line    string
		date    string
		want    string
		wantErr error
	}{
		{"saturday runs weekend", "Line 1", citytest.Saturday, "Weekend", nil},
		{"monday runs weekday", "Line 1", citytest.Monday, "Weekday", nil},
		{"listed holiday wins over weekday", "Line 1", citytest.Holiday, "Weekend", nil},
		{"weekday-only line on saturday", "Commuter Line", citytest.Saturday, "", city.ErrNoService},
		{"weekday-only line on holiday", "Commuter Line", citytest.Holiday, "Weekday", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := c.Lines[tt.line].DetermineDateGroup(citytest.Date(tt.date))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.Name != tt.want {
				t.Errorf("expected group %s, got %s", tt.want, g.Name)
			}
		})
	}
}

func TestDetermineDateGroupAmbiguous(t *testing.T) {
	l, err := city.NewLine("X", "", []string{"A", "B"}, []int{100}, false)
	if err != nil {
		t.Fatal(err)
	}
	sat := citytest.Date(citytest.Saturday)
	l.AddDateGroup(&city.DateGroup{Name: "One", Weekdays: []time.Weekday{time.Saturday}})
	l.AddDateGroup(&city.DateGroup{Name: "Two", Weekdays: []time.Weekday{time.Saturday, time.Sunday}})

	if _, err := l.DetermineDateGroup(sat); !errors.Is(err, city.ErrInvalid) {
		t.Errorf("expected ErrInvalid for overlapping groups, got %v", err)
	}
}

func TestDetermineDirection(t *testing.T) {
	c := citytest.MustDemo()

	tests := []struct {
		line, from, to string
		want           string
	}{
		{"Line 1", "Alpha", "Mid", "East-bound"},
		{"Line 1", "East-Gate", "Beta", "West-bound"},
		{"Circle Line", "Ring-D", "Ring-B", "Inner"},
		{"Circle Line", "Beta", "Ring-D", "Inner"},
	}

	for _, tt := range tests {
		t.Run(tt.from+"-"+tt.to, func(t *testing.T) {
			got, err := c.Lines[tt.line].DetermineDirection(tt.from, tt.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := c.Lines["Line 1"].DetermineDirection("Alpha", "Alpha"); !errors.Is(err, city.ErrNotFound) {
		t.Errorf("expected ErrNotFound for identical stations, got %v", err)
	}
}

func TestDistance(t *testing.T) {
	c := citytest.MustDemo()

	if got := c.Lines["Line 1"].Distance("East-bound", "Alpha", "Mid"); got != 2700 {
		t.Errorf("Alpha -> Mid: expected 2700, got %d", got)
	}
	if got := c.Lines["Line 1"].Distance("West-bound", "Mid", "Alpha"); got != 2700 {
		t.Errorf("Mid -> Alpha: expected 2700, got %d", got)
	}
	// Ring-D -> Beta -> Ring-B wraps around the loop
	if got := c.Lines["Circle Line"].Distance("Inner", "Ring-D", "Ring-B"); got != 1800 {
		t.Errorf("Ring-D -> Ring-B inner: expected 1800, got %d", got)
	}
	if got := c.Lines["Circle Line"].Distance("Outer", "Beta", "Ring-D"); got != 1000 {
		t.Errorf("Beta -> Ring-D outer: expected 1000, got %d", got)
	}
}

func TestTransferMinutes(t *testing.T) {
	c := citytest.MustDemo()

	tests := []struct {
		name    string
		station string
		key     city.TransferKey
		want    int
	}{
		{"exact entry", "Mid", city.TransferKey{FromLine: "Line 1", FromDirection: "East-bound", ToLine: "Line 2", ToDirection: "South-bound"}, 4},
		{"line wildcard", "Mid", city.TransferKey{FromLine: "Line 1", FromDirection: "West-bound", ToLine: "Line 2", ToDirection: "North-bound"}, 3},
		{"same line and direction is free", "Beta", city.TransferKey{FromLine: "Circle Line", FromDirection: "Inner", ToLine: "Circle Line", ToDirection: "Inner"}, 0},
		{"reversing falls back to default", "Mid", city.TransferKey{FromLine: "Line 1", FromDirection: "East-bound", ToLine: "Line 1", ToDirection: "West-bound"}, 3},
		{"station without table", "Zeta", city.TransferKey{FromLine: "Line 2", FromDirection: "South-bound", ToLine: "Line 2", ToDirection: "North-bound"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.TransferMinutes(tt.station, tt.key); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestVirtualTransfer(t *testing.T) {
	c := citytest.MustDemo()

	partners := c.VirtualPartners("East-Gate")
	if len(partners) != 1 {
		t.Fatalf("expected one virtual partner, got %d", len(partners))
	}
	v := partners[0]
	if v.Other("East-Gate") != "West-Plaza" {
		t.Errorf("expected partner West-Plaza, got %s", v.Other("East-Gate"))
	}
	if m, ok := v.MinMinutes("East-Gate", "West-Plaza", nil); !ok || m != 6 {
		t.Errorf("East-Gate -> West-Plaza: expected 6, got %d (%v)", m, ok)
	}
	if m, ok := v.MinMinutes("West-Plaza", "East-Gate", nil); !ok || m != 7 {
		t.Errorf("West-Plaza -> East-Gate: expected 7, got %d (%v)", m, ok)
	}
	key := city.TransferKey{FromLine: "Line 1", FromDirection: "East-bound", ToLine: "Line 3", ToDirection: "Outbound"}
	if m, ok := v.Minutes("East-Gate", "West-Plaza", key); !ok || m != 6 {
		t.Errorf("expected exact walk of 6, got %d (%v)", m, ok)
	}

	err := c.AddVirtualTransfer("Alpha", "Zeta", city.TransferKey{FromLine: "Line 3", ToLine: "Line 1"}, 5)
	if !errors.Is(err, city.ErrInvalid) {
		t.Errorf("expected ErrInvalid for lines not serving the pair, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	c := citytest.MustDemo()

	stations := []struct {
		input, want string
	}{
		{"Mid", "Mid"},
		{"Gate", "East-Gate"},
		{"Ring", "Ring-B"},
		{"Isle-S", "Isle-South"},
	}
	for _, tt := range stations {
		got, err := c.ResolveStation(nil, tt.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.input, tt.want, got)
		}
		again, err := c.ResolveStation(nil, got)
		if err != nil || again != got {
			t.Errorf("%s: resolving a canonical name should be stable, got %s (%v)", got, again, err)
		}
	}

	if _, err := c.ResolveStation(nil, "mid"); !errors.Is(err, city.ErrNotFound) {
		t.Errorf("matching is case-sensitive, expected ErrNotFound, got %v", err)
	}

	lines := []struct {
		input, want string
	}{
		{"Line 2", "Line 2"},
		{"2", "Line 2"},
		{"C", "Circle Line"},
		{"Circle", "Circle Line"},
		{"Line", "Line 1"},
	}
	for _, tt := range lines {
		got, err := c.ResolveLine(nil, tt.input)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.input, tt.want, got)
		}
	}

	if _, err := c.ResolveLine(nil, "Line 9"); !errors.Is(err, city.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFare(t *testing.T) {
	c := citytest.MustDemo()
	morning := clock.Clock{Hour: 8}
	early := clock.Clock{Hour: 6, Minute: 30}

	tests := []struct {
		name   string
		path   city.FarePath
		entry  clock.Clock
		want   float64
		wantOK bool
	}{
		{"short ride", city.FarePath{Lines: []string{"Line 1"}, Distance: 2700}, morning, 3, true},
		{"early discount", city.FarePath{Lines: []string{"Line 1"}, Distance: 2700}, early, 2.7, true},
		{"second tier", city.FarePath{Lines: []string{"Line 1", "Line 2"}, Distance: 9000}, morning, 4, true},
		{"beyond last tier", city.FarePath{Lines: []string{"Line 2", "Line 5"}, Distance: 30000}, morning, 6, true},
		{"flat commuter fare", city.FarePath{Lines: []string{"Commuter Line"}, Distance: 5000}, morning, 10, true},
		{"mixed commuter path", city.FarePath{Lines: []string{"Line 1", "Commuter Line"}, Distance: 6200}, morning, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Fare(tt.path, tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected %.2f, got %.2f", tt.want, got)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	c := citytest.MustDemo()

	for id, tr := range c.Trains() {
		if tr.ID != id {
			t.Fatalf("train %s has id %d at position %d", tr.Code, tr.ID, id)
		}
	}
	if got := c.Stations["Mid"].Lines; len(got) != 2 || got[0] != "Line 1" || got[1] != "Line 2" {
		t.Errorf("expected Mid served by Line 1 and Line 2, got %v", got)
	}
	if c.Stations["Mid"].Lat == nil {
		t.Error("expected coordinates on Mid")
	}
	names := c.StationNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("station names not sorted: %v", names)
		}
	}
}

func TestValidate(t *testing.T) {
	build := func(stops ...city.Stop) error {
		c := city.New("bad")
		l, err := city.NewLine("L", "", []string{"A", "B", "C"}, []int{100, 100}, false)
		if err != nil {
			return err
		}
		l.AddDirection("Up", false)
		l.AddDateGroup(&city.DateGroup{Name: "Daily", Weekdays: everyDay()})
		if err := l.AddTrain(&city.Train{Code: "T1", Direction: "Up", DateGroup: "Daily", Stops: stops}); err != nil {
			return err
		}
		if err := c.AddLine(l); err != nil {
			return err
		}
		return c.Finalize()
	}
	at := func(s string, h, m int) city.Stop { return city.Stop{Station: s, Time: clock.New(h, m, 0)} }

	tests := []struct {
		name    string
		stops   []city.Stop
		wantErr bool
	}{
		{"valid", []city.Stop{at("A", 8, 0), at("B", 8, 2), at("C", 8, 4)}, false},
		{"skipping a station", []city.Stop{at("A", 8, 0), at("C", 8, 4)}, false},
		{"time going backwards", []city.Stop{at("A", 8, 0), at("B", 7, 59)}, true},
		{"equal times", []city.Stop{at("A", 8, 0), at("B", 8, 0)}, true},
		{"wrong order", []city.Stop{at("B", 8, 0), at("A", 8, 2)}, true},
		{"unknown station", []city.Stop{at("A", 8, 0), at("Z", 8, 2)}, true},
		{"crossing midnight", []city.Stop{at("A", 23, 58), {Station: "B", Time: clock.New(0, 1, 1)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := build(tt.stops...)
			if tt.wantErr && !errors.Is(err, city.ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewLineRejectsBadDistances(t *testing.T) {
	if _, err := city.NewLine("L", "", []string{"A", "B", "C"}, []int{100}, false); !errors.Is(err, city.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := city.NewLine("L", "", []string{"A", "B", "C"}, []int{100, 100}, true); !errors.Is(err, city.ErrInvalid) {
		t.Errorf("loops need a closing distance, got %v", err)
	}
	if _, err := city.NewLine("L", "", []string{"A", "B", "A"}, []int{100, 100}, false); !errors.Is(err, city.ErrInvalid) {
		t.Errorf("expected ErrInvalid for duplicate stations, got %v", err)
	}
}

func everyDay() []time.Weekday {
	return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
}
