// Package timetable indexes the trains of a city for boarding lookups: per
// (line, direction, date group, station) call arrays sorted by time, the
// through-running index, route filters and station timetables.
package timetable

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Call is one scheduled stop of a train at a station
type Call struct {
	Time  clock.Clock
	Train *city.Train
	Pos   int // index into Train.Stops
}

// Final reports whether the train ends its run at this call
func (c Call) Final() bool { return c.Pos == len(c.Train.Stops)-1 }

type callKey struct {
	line, direction, group, station string
}

// Index is the immutable boarding index of a city
type Index struct {
	city    *city.City
	calls   map[callKey][]Call
	through *ThroughIndex
}

// New indexes every train of a finalized city and matches through trains
func New(c *city.City) (*Index, error) {
	ix := &Index{
		city:  c,
		calls: make(map[callKey][]Call),
	}
	for _, t := range c.Trains() {
		for pos, stop := range t.Stops {
			k := callKey{t.Line, t.Direction, t.DateGroup, stop.Station}
			ix.calls[k] = append(ix.calls[k], Call{Time: stop.Time, Train: t, Pos: pos})
		}
	}
	for _, calls := range ix.calls {
		sort.Slice(calls, func(i, j int) bool {
			a, b := calls[i], calls[j]
			if a.Time != b.Time {
				return a.Time.Before(b.Time)
			}
			if a.Train.Code != b.Train.Code {
				return a.Train.Code < b.Train.Code
			}
			return a.Pos < b.Pos
		})
	}

	through, err := newThroughIndex(c)
	if err != nil {
		return nil, fmt.Errorf("failed to match through trains: %w", err)
	}
	ix.through = through
	return ix, nil
}

// City returns the indexed city
func (ix *Index) City() *city.City { return ix.city }

// Through returns the through-train index
func (ix *Index) Through() *ThroughIndex { return ix.through }

// Calls returns every call at a station for one line, direction and date group,
// sorted by time then train code
func (ix *Index) Calls(line, direction, group, station string) []Call {
	return ix.calls[callKey{line, direction, group, station}]
}

// Board returns the earliest call at or after at from which the rider can
// still ride somewhere: either a later stop of the same train or a through
// continuation.
func (ix *Index) Board(line, direction, group, station string, at clock.Clock, f RouteFilter) (Call, bool) {
	calls := ix.Departures(line, direction, group, station, at, f, 1)
	if len(calls) == 0 {
		return Call{}, false
	}
	return calls[0], true
}

// Departures returns up to n boardable calls at or after at (n <= 0 means all)
func (ix *Index) Departures(line, direction, group, station string, at clock.Clock, f RouteFilter, n int) []Call {
	calls := ix.Calls(line, direction, group, station)
	start := sort.Search(len(calls), func(i int) bool {
		return !calls[i].Time.Before(at)
	})
	var out []Call
	for _, c := range calls[start:] {
		if c.Final() {
			if _, ok := ix.through.Next(c.Train); !ok {
				continue
			}
		}
		if !f.Accepts(c.Train) {
			continue
		}
		out = append(out, c)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// ServiceDay is the date group each line runs on a date
type ServiceDay struct {
	Date   time.Time
	Groups map[string]string // line -> date group
}

// Group returns the active date group of a line, if it runs
func (s *ServiceDay) Group(line string) (string, bool) {
	g, ok := s.Groups[line]
	return g, ok
}

// ServiceDay resolves the date group of every line. Lines without service are
// left out; overlapping date groups are an error.
func (ix *Index) ServiceDay(date time.Time) (*ServiceDay, error) {
	sd := &ServiceDay{Date: date, Groups: make(map[string]string, len(ix.city.Lines))}
	for _, name := range ix.city.LineOrder {
		g, err := ix.city.Lines[name].DetermineDateGroup(date)
		if errors.Is(err, city.ErrNoService) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sd.Groups[name] = g.Name
	}
	return sd, nil
}
