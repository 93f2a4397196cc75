// Package citytest builds a small but complete demo network used by tests
// across the module.
//
// Layout (weekend and weekday timetables are identical unless noted):
//
//	Line 1        Alpha - Beta - Mid - Gamma - East-Gate        (locals every 10 min, Express skips Beta)
//	Line 2        North-End - Mid - Zeta - South-End            (every 12 min, runs through onto Line 5)
//	Line 3        West-Plaza - Delta - Omega                    (every 8 min)
//	Line 5        South-End - Harbor - Pier
//	Circle Line   Beta - Ring-B - Ring-C - Ring-D (loop)
//	Island Line   Isle-North - Isle-South                       (disconnected)
//	Commuter Line Alpha - Commuter-Park                         (weekdays only)
//
// East-Gate and West-Plaza are paired by a virtual transfer.
package citytest

import (
	"fmt"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Saturday is the default query date of the scenarios (a weekend day)
const Saturday = "2024-06-01"

// Monday is a regular weekday
const Monday = "2024-06-03"

// Holiday is a Monday that runs the weekend timetable
const Holiday = "2024-06-10"

// Service describes a regular interval timetable
type Service struct {
	Direction string
	Prefix    string
	Stations  []string
	Running   []int // minutes between consecutive stations
	First     string
	Last      string
	Headway   int
	Routes    []string
}

// AddServices expands services into trains for every listed date group
func AddServices(l *city.Line, groups []string, services ...Service) error {
	for _, group := range groups {
		tag := ""
		if group == "Weekend" {
			tag = "H"
		}
		for _, s := range services {
			first, err := clock.ParseSchedule(s.First)
			if err != nil {
				return err
			}
			last, err := clock.ParseSchedule(s.Last)
			if err != nil {
				return err
			}
			seq := 1
			for dep := first.Absolute(); dep <= last.Absolute(); dep += s.Headway {
				t := &city.Train{
					Code:      fmt.Sprintf("%s%s%03d", s.Prefix, tag, seq),
					Direction: s.Direction,
					DateGroup: group,
					Routes:    s.Routes,
				}
				at := dep
				for i, station := range s.Stations {
					if i > 0 {
						at += s.Running[i-1]
					}
					t.Stops = append(t.Stops, city.Stop{Station: station, Time: clock.FromAbsolute(at)})
				}
				if err := l.AddTrain(t); err != nil {
					return err
				}
				seq++
			}
		}
	}
	return nil
}

func dateGroups(l *city.Line, weekend bool) []string {
	l.AddDateGroup(&city.DateGroup{
		Name:     "Weekday",
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	})
	if !weekend {
		return []string{"Weekday"}
	}
	l.AddDateGroup(&city.DateGroup{
		Name:     "Weekend",
		Weekdays: []time.Weekday{time.Saturday, time.Sunday},
		Dates:    []string{Holiday},
	})
	return []string{"Weekday", "Weekend"}
}

// Demo builds and finalizes the demo city
func Demo() (*city.City, error) {
	c := city.New("Demo Metro")
	c.DefaultTransferMinutes = 3

	// Line 1
	l1, err := city.NewLine("Line 1", "1",
		[]string{"Alpha", "Beta", "Mid", "Gamma", "East-Gate"},
		[]int{1200, 1500, 1000, 1300}, false)
	if err != nil {
		return nil, err
	}
	l1.AddDirection("East-bound", false)
	l1.AddDirection("West-bound", true)
	if err := AddServices(l1, dateGroups(l1, true),
		Service{Direction: "East-bound", Prefix: "1E", Stations: []string{"Alpha", "Beta", "Mid", "Gamma", "East-Gate"},
			Running: []int{3, 4, 3, 3}, First: "06:00", Last: "23:50", Headway: 10},
		Service{Direction: "East-bound", Prefix: "1X", Stations: []string{"Alpha", "Mid", "Gamma", "East-Gate"},
			Running: []int{5, 3, 3}, First: "06:05", Last: "22:35", Headway: 30, Routes: []string{"Express"}},
		Service{Direction: "West-bound", Prefix: "1W", Stations: []string{"East-Gate", "Gamma", "Mid", "Beta", "Alpha"},
			Running: []int{3, 3, 4, 3}, First: "06:00", Last: "23:50", Headway: 10},
	); err != nil {
		return nil, err
	}

	// Line 2
	l2, err := city.NewLine("Line 2", "2",
		[]string{"North-End", "Mid", "Zeta", "South-End"},
		[]int{1400, 1100, 1600}, false)
	if err != nil {
		return nil, err
	}
	l2.AddDirection("South-bound", false)
	l2.AddDirection("North-bound", true)
	if err := AddServices(l2, dateGroups(l2, true),
		Service{Direction: "South-bound", Prefix: "2S", Stations: []string{"North-End", "Mid", "Zeta", "South-End"},
			Running: []int{4, 3, 4}, First: "06:02", Last: "23:38", Headway: 12},
		Service{Direction: "North-bound", Prefix: "2N", Stations: []string{"South-End", "Zeta", "Mid", "North-End"},
			Running: []int{4, 3, 4}, First: "06:00", Last: "23:36", Headway: 12},
	); err != nil {
		return nil, err
	}

	// Line 3
	l3, err := city.NewLine("Line 3", "3",
		[]string{"West-Plaza", "Delta", "Omega"},
		[]int{900, 1100}, false)
	if err != nil {
		return nil, err
	}
	l3.AddDirection("Outbound", false)
	l3.AddDirection("Inbound", true)
	if err := AddServices(l3, dateGroups(l3, true),
		Service{Direction: "Outbound", Prefix: "3O", Stations: []string{"West-Plaza", "Delta", "Omega"},
			Running: []int{2, 3}, First: "06:00", Last: "23:44", Headway: 8},
		Service{Direction: "Inbound", Prefix: "3I", Stations: []string{"Omega", "Delta", "West-Plaza"},
			Running: []int{3, 2}, First: "06:00", Last: "23:44", Headway: 8},
	); err != nil {
		return nil, err
	}

	// Line 5, Seaward trains continue Line 2 South-bound runs one minute after arrival
	l5, err := city.NewLine("Line 5", "5",
		[]string{"South-End", "Harbor", "Pier"},
		[]int{2000, 1500}, false)
	if err != nil {
		return nil, err
	}
	l5.AddDirection("Seaward", false)
	l5.AddDirection("Landward", true)
	if err := AddServices(l5, dateGroups(l5, true),
		Service{Direction: "Seaward", Prefix: "5S", Stations: []string{"South-End", "Harbor", "Pier"},
			Running: []int{3, 2}, First: "06:14", Last: "23:50", Headway: 12},
		Service{Direction: "Landward", Prefix: "5L", Stations: []string{"Pier", "Harbor", "South-End"},
			Running: []int{2, 3}, First: "06:00", Last: "23:30", Headway: 15},
	); err != nil {
		return nil, err
	}

	// Circle Line
	lc, err := city.NewLine("Circle Line", "C",
		[]string{"Beta", "Ring-B", "Ring-C", "Ring-D"},
		[]int{800, 900, 700, 1000}, true)
	if err != nil {
		return nil, err
	}
	lc.AddDirection("Inner", false)
	lc.AddDirection("Outer", true)
	if err := AddServices(lc, dateGroups(lc, true),
		Service{Direction: "Inner", Prefix: "CI", Stations: []string{"Beta", "Ring-B", "Ring-C", "Ring-D", "Beta"},
			Running: []int{2, 2, 2, 3}, First: "06:00", Last: "23:00", Headway: 15},
		Service{Direction: "Outer", Prefix: "CO", Stations: []string{"Beta", "Ring-D", "Ring-C", "Ring-B", "Beta"},
			Running: []int{3, 2, 2, 2}, First: "06:00", Last: "23:00", Headway: 15},
	); err != nil {
		return nil, err
	}

	// Island Line
	li, err := city.NewLine("Island Line", "I", []string{"Isle-North", "Isle-South"}, []int{1000}, false)
	if err != nil {
		return nil, err
	}
	li.AddDirection("South", false)
	li.AddDirection("North", true)
	if err := AddServices(li, dateGroups(li, true),
		Service{Direction: "South", Prefix: "IS", Stations: []string{"Isle-North", "Isle-South"},
			Running: []int{3}, First: "06:00", Last: "23:00", Headway: 20},
		Service{Direction: "North", Prefix: "IN", Stations: []string{"Isle-South", "Isle-North"},
			Running: []int{3}, First: "06:10", Last: "23:10", Headway: 20},
	); err != nil {
		return nil, err
	}

	// Commuter Line
	lk, err := city.NewLine("Commuter Line", "K", []string{"Alpha", "Commuter-Park"}, []int{5000}, false)
	if err != nil {
		return nil, err
	}
	lk.AddDirection("Outbound", false)
	lk.AddDirection("Inbound", true)
	if err := AddServices(lk, dateGroups(lk, false),
		Service{Direction: "Outbound", Prefix: "KO", Stations: []string{"Alpha", "Commuter-Park"},
			Running: []int{6}, First: "06:15", Last: "21:45", Headway: 30},
		Service{Direction: "Inbound", Prefix: "KI", Stations: []string{"Commuter-Park", "Alpha"},
			Running: []int{6}, First: "06:00", Last: "21:30", Headway: 30},
	); err != nil {
		return nil, err
	}

	for _, l := range []*city.Line{l1, l2, l3, l5, lc, li, lk} {
		if err := c.AddLine(l); err != nil {
			return nil, err
		}
	}

	transfers := []struct {
		station string
		key     city.TransferKey
		minutes int
	}{
		{"Mid", city.TransferKey{FromLine: "Line 1", FromDirection: "East-bound", ToLine: "Line 2", ToDirection: "South-bound"}, 4},
		{"Mid", city.TransferKey{FromLine: "Line 2", FromDirection: "North-bound", ToLine: "Line 1", ToDirection: "West-bound"}, 5},
		{"Mid", city.TransferKey{FromLine: "Line 1", ToLine: "Line 2"}, 3},
		{"Mid", city.TransferKey{FromLine: "Line 2", ToLine: "Line 1"}, 3},
		{"Beta", city.TransferKey{FromLine: "Line 1", ToLine: "Circle Line"}, 2},
		{"Beta", city.TransferKey{FromLine: "Circle Line", ToLine: "Line 1"}, 2},
	}
	for _, tr := range transfers {
		if err := c.AddTransfer(tr.station, tr.key, tr.minutes); err != nil {
			return nil, err
		}
	}

	if err := c.AddVirtualTransfer("East-Gate", "West-Plaza",
		city.TransferKey{FromLine: "Line 1", FromDirection: "East-bound", ToLine: "Line 3", ToDirection: "Outbound"}, 6); err != nil {
		return nil, err
	}
	if err := c.AddVirtualTransfer("West-Plaza", "East-Gate",
		city.TransferKey{FromLine: "Line 3", FromDirection: "Inbound", ToLine: "Line 1", ToDirection: "West-bound"}, 7); err != nil {
		return nil, err
	}

	for _, group := range []string{"Weekday", "Weekend"} {
		if err := c.AddThroughSpec(&city.ThroughSpec{
			Name: "Line 2 - Line 5 " + group,
			Segments: []city.ThroughSegment{
				{Line: "Line 2", Direction: "South-bound", DateGroup: group},
				{Line: "Line 5", Direction: "Seaward", DateGroup: group},
			},
			MaxLayover: 2,
		}); err != nil {
			return nil, err
		}
	}

	early := clock.Clock{Hour: 7}
	c.FareRules = []city.FareRule{
		&city.FlatLineFare{Lines: []string{"Commuter Line"}, Price: 10},
		&city.DistanceFare{
			Tiers:          []city.FareTier{{UpTo: 6000, Price: 3}, {UpTo: 12000, Price: 4}, {UpTo: 22000, Price: 5}},
			ExtraEvery:     20000,
			ExtraPrice:     1,
			DiscountBefore: &early,
			DiscountRate:   0.1,
			ExcludedLines:  []string{"Commuter Line"},
		},
	}

	if err := c.SetCoordinates("Mid", 39.9075, 116.3972); err != nil {
		return nil, err
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDemo is Demo for tests
func MustDemo() *city.City {
	c, err := Demo()
	if err != nil {
		panic(err)
	}
	return c
}

// Date parses a fixture date
func Date(s string) time.Time {
	d, err := clock.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
