package timetable

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Entry is one train in a station timetable
type Entry struct {
	Call
	LastTrain   bool
	Terminating bool
}

// Block lists the trains of one (line, direction, date group) at a station
type Block struct {
	Line      string
	Direction string
	DateGroup string
	NoService bool
	Entries   []Entry
}

// StationFilter narrows a station timetable. Zero values match everything.
type StationFilter struct {
	Line        string
	Direction   string
	Destination string       // keep trains that reach this station later
	After       *clock.Clock // drop trains calling before this time
	Count       int          // cap per block when After is set
	Routes      RouteFilter
}

// StationTimetable lists, per matching (line, direction, date group), the
// trains calling at a station in time order. The last-train flag is computed
// over every train of the block before filters apply, so exactly one train
// per block carries it.
func (ix *Index) StationTimetable(station string, date time.Time, f StationFilter) ([]Block, error) {
	st, ok := ix.city.Stations[station]
	if !ok {
		return nil, fmt.Errorf("station %q: %w", station, city.ErrNotFound)
	}
	var blocks []Block
	for _, lineName := range st.Lines {
		if f.Line != "" && f.Line != lineName {
			continue
		}
		l := ix.city.Lines[lineName]
		g, err := l.DetermineDateGroup(date)
		if err != nil && !errors.Is(err, city.ErrNoService) {
			return nil, err
		}
		for _, dir := range l.DirectionOrder {
			if f.Direction != "" && f.Direction != dir {
				continue
			}
			if err != nil {
				blocks = append(blocks, Block{Line: lineName, Direction: dir, NoService: true})
				continue
			}
			blocks = append(blocks, ix.block(l, dir, g.Name, station, f))
		}
	}
	return blocks, nil
}

func (ix *Index) block(l *city.Line, dir, group, station string, f StationFilter) Block {
	b := Block{Line: l.Name, Direction: dir, DateGroup: group}

	// first call of each train only, so loop trains are listed once
	var calls []Call
	seen := make(map[int]bool)
	for _, c := range ix.Calls(l.Name, dir, group, station) {
		if seen[c.Train.ID] {
			continue
		}
		seen[c.Train.ID] = true
		calls = append(calls, c)
	}
	last := -1
	for i, c := range calls {
		if last < 0 || !c.Time.Before(calls[last].Time) {
			last = i
		}
	}

	for i, c := range calls {
		if !f.Routes.Accepts(c.Train) {
			continue
		}
		if f.After != nil && c.Time.Before(*f.After) {
			continue
		}
		if f.Destination != "" && !ix.reaches(c, f.Destination) {
			continue
		}
		_, continues := ix.through.Next(c.Train)
		b.Entries = append(b.Entries, Entry{
			Call:        c,
			LastTrain:   i == last,
			Terminating: c.Final() && !continues,
		})
		if f.After != nil && f.Count > 0 && len(b.Entries) == f.Count {
			break
		}
	}
	return b
}

// reaches reports whether the train, or its through continuation, calls at
// dest after the given call
func (ix *Index) reaches(c Call, dest string) bool {
	t, from := c.Train, c.Pos+1
	for t != nil {
		if t.Index(dest, from) >= 0 {
			return true
		}
		next, ok := ix.through.Next(t)
		if !ok {
			return false
		}
		t, from = next, 1
	}
	return false
}
