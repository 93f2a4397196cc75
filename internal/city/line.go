package city

import (
	"fmt"
	"slices"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Line is a named service with an ordered station list
type Line struct {
	Name      string
	Code      string
	Loop      bool
	Stations  []string // canonical order
	Distances []int    // metres; Distances[i] is Stations[i] -> Stations[i+1] (wrapping for loops)

	Directions     map[string]*Direction
	DirectionOrder []string
	DateGroups     map[string]*DateGroup
	DateGroupOrder []string

	// Trains is keyed by direction, then date group
	Trains map[string]map[string][]*Train
}

// Direction is a labeled ordering of a line's stations
type Direction struct {
	Name     string
	Reversed bool
	Stations []string
	hops     []int // hops[i] is the distance from Stations[i] to the next station
	index    map[string]int
}

// NewLine creates a line. len(distances) must be len(stations)-1, or
// len(stations) for loops.
func NewLine(name, code string, stations []string, distances []int, loop bool) (*Line, error) {
	want := len(stations) - 1
	if loop {
		want = len(stations)
	}
	if len(stations) < 2 {
		return nil, fmt.Errorf("%w: line %q needs at least two stations", ErrInvalid, name)
	}
	if len(distances) != want {
		return nil, fmt.Errorf("%w: line %q has %d stations but %d distances", ErrInvalid, name, len(stations), len(distances))
	}
	seen := make(map[string]bool, len(stations))
	for _, s := range stations {
		if seen[s] {
			return nil, fmt.Errorf("%w: station %q listed twice on line %q", ErrInvalid, s, name)
		}
		seen[s] = true
	}
	return &Line{
		Name:       name,
		Code:       code,
		Loop:       loop,
		Stations:   stations,
		Distances:  distances,
		Directions: make(map[string]*Direction),
		DateGroups: make(map[string]*DateGroup),
		Trains:     make(map[string]map[string][]*Train),
	}, nil
}

// AddDirection adds a direction following (or reversing) the canonical order
func (l *Line) AddDirection(name string, reversed bool) *Direction {
	n := len(l.Stations)
	d := &Direction{Name: name, Reversed: reversed, index: make(map[string]int, n)}
	hop := func(i int) int { // canonical i -> i+1
		if i < len(l.Distances) {
			return l.Distances[i]
		}
		return 0
	}
	if !reversed {
		d.Stations = slices.Clone(l.Stations)
		for i := 0; i < len(l.Distances); i++ {
			d.hops = append(d.hops, hop(i))
		}
	} else {
		d.Stations = make([]string, 0, n)
		for i := n - 1; i >= 0; i-- {
			d.Stations = append(d.Stations, l.Stations[i])
		}
		for i := n - 2; i >= 0; i-- {
			d.hops = append(d.hops, hop(i))
		}
		if l.Loop {
			// reversed loop leaves Stations[0] towards Stations[n-1]
			d.hops = append(d.hops, hop(n-1))
		}
	}
	for i, s := range d.Stations {
		d.index[s] = i
	}
	l.Directions[name] = d
	l.DirectionOrder = append(l.DirectionOrder, name)
	return d
}

// AddDateGroup registers a date group
func (l *Line) AddDateGroup(g *DateGroup) {
	l.DateGroups[g.Name] = g
	l.DateGroupOrder = append(l.DateGroupOrder, g.Name)
}

// AddTrain files a train under its direction and date group
func (l *Line) AddTrain(t *Train) error {
	if _, ok := l.Directions[t.Direction]; !ok {
		return fmt.Errorf("train %s direction %q on line %q: %w", t.Code, t.Direction, l.Name, ErrNotFound)
	}
	if _, ok := l.DateGroups[t.DateGroup]; !ok {
		return fmt.Errorf("train %s date group %q on line %q: %w", t.Code, t.DateGroup, l.Name, ErrNotFound)
	}
	if len(t.Stops) < 2 {
		return fmt.Errorf("%w: train %s has fewer than two stops", ErrInvalid, t.Code)
	}
	t.Line = l.Name
	byGroup, ok := l.Trains[t.Direction]
	if !ok {
		byGroup = make(map[string][]*Train)
		l.Trains[t.Direction] = byGroup
	}
	byGroup[t.DateGroup] = append(byGroup[t.DateGroup], t)
	return nil
}

// StationIndex returns the canonical position of a station, or -1
func (l *Line) StationIndex(station string) int {
	return slices.Index(l.Stations, station)
}

// DetermineDateGroup returns the single date group covering the date.
// A group that lists the date explicitly wins over weekday-based groups.
func (l *Line) DetermineDateGroup(date time.Time) (*DateGroup, error) {
	var explicit, matched []*DateGroup
	for _, name := range l.DateGroupOrder {
		g := l.DateGroups[name]
		if g.lists(date) {
			explicit = append(explicit, g)
		} else if g.Covers(date) {
			matched = append(matched, g)
		}
	}
	if len(explicit) > 0 {
		matched = explicit
	}
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("line %s on %s: %w", l.Name, date.Format(clock.DateLayout), ErrNoService)
	case 1:
		return matched[0], nil
	}
	return nil, fmt.Errorf("%w: line %s has %d date groups covering %s", ErrInvalid, l.Name, len(matched), date.Format(clock.DateLayout))
}

// DetermineDirection returns the first direction in which from precedes to
func (l *Line) DetermineDirection(from, to string) (string, error) {
	for _, name := range l.DirectionOrder {
		if l.Directions[name].Precedes(from, to, l.Loop) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no direction of %s from %s to %s: %w", l.Name, from, to, ErrNotFound)
}

// Distance returns the metres travelled along a direction between two stations
func (l *Line) Distance(direction, from, to string) int {
	d, ok := l.Directions[direction]
	if !ok {
		return 0
	}
	i, ok1 := d.index[from]
	j, ok2 := d.index[to]
	if !ok1 || !ok2 {
		return 0
	}
	n := len(d.Stations)
	total := 0
	for k := i; k != j; k = (k + 1) % n {
		if k >= len(d.hops) {
			break // non-loop end of line
		}
		total += d.hops[k]
	}
	return total
}

// TrainsFor returns the trains of a direction and date group
func (l *Line) TrainsFor(direction, group string) []*Train {
	return l.Trains[direction][group]
}

// Index returns the position of a station in the direction, or -1
func (d *Direction) Index(station string) int {
	if i, ok := d.index[station]; ok {
		return i
	}
	return -1
}

// Precedes reports whether from comes before to. On loops every pair of
// distinct stations qualifies, since the sequence is a full cycle.
func (d *Direction) Precedes(from, to string, loop bool) bool {
	i, j := d.Index(from), d.Index(to)
	if i < 0 || j < 0 || i == j {
		return false
	}
	return loop || i < j
}

// Next returns the station following s in this direction, if any
func (d *Direction) Next(s string, loop bool) (string, int, bool) {
	i := d.Index(s)
	if i < 0 {
		return "", 0, false
	}
	if i+1 < len(d.Stations) {
		return d.Stations[i+1], d.hops[i], true
	}
	if loop && len(d.hops) == len(d.Stations) {
		return d.Stations[0], d.hops[i], true
	}
	return "", 0, false
}

// Stop is one scheduled call of a train
type Stop struct {
	Station string
	Time    clock.Clock
}

// Train is a scheduled run on one line, direction and date group
type Train struct {
	ID        int
	Code      string
	Line      string
	Direction string
	DateGroup string
	Stops     []Stop
	Routes    []string
}

// First returns the origin call
func (t *Train) First() Stop { return t.Stops[0] }

// Last returns the terminal call
func (t *Train) Last() Stop { return t.Stops[len(t.Stops)-1] }

// Index returns the first position of a station at or after from, or -1
func (t *Train) Index(station string, from int) int {
	for i := max(from, 0); i < len(t.Stops); i++ {
		if t.Stops[i].Station == station {
			return i
		}
	}
	return -1
}

// ArrivalTime returns the first arrival time at a station
func (t *Train) ArrivalTime(station string) (clock.Clock, bool) {
	if i := t.Index(station, 0); i >= 0 {
		return t.Stops[i].Time, true
	}
	return clock.Clock{}, false
}

// HasRoute reports whether the train carries a route tag
func (t *Train) HasRoute(tag string) bool {
	return slices.Contains(t.Routes, tag)
}

// Terminus returns the final station of the run
func (t *Train) Terminus() string { return t.Last().Station }

func (t *Train) String() string {
	return fmt.Sprintf("%s %s %s", t.Line, t.Direction, t.Code)
}
