// Package planner finds journeys over a timetabled network. Plan runs a
// time-dependent k-shortest search over concrete train calls; FewestTransfers
// takes the platform graph's shortest path and realizes it on trains.
package planner

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/graph"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

var (
	// ErrUnreachable is returned when no journey exists on the service day
	ErrUnreachable = graph.ErrUnreachable
	// ErrCancelled is returned when the context ends during a search
	ErrCancelled = errors.New("query cancelled")
	// ErrSameStation is returned when origin and destination coincide
	ErrSameStation = errors.New("origin and destination are the same station")
)

// Request describes one planning query
type Request struct {
	Origin      string
	Destination string
	Date        time.Time
	Depart      clock.Clock
	K           int
	Routes      timetable.RouteFilter
}

// Options configure an engine
type Options struct {
	// TransferPenalty is the graph weight of one transfer for FewestTransfers,
	// in units of ride hops
	TransferPenalty int
}

// Engine plans journeys over one indexed city. It is safe for concurrent use.
type Engine struct {
	city  *city.City
	ix    *timetable.Index
	graph *graph.Graph
}

// NewEngine builds the platform graph and returns an engine
func NewEngine(ix *timetable.Index, opts Options) *Engine {
	if opts.TransferPenalty <= 0 {
		opts.TransferPenalty = 1000
	}
	return &Engine{
		city:  ix.City(),
		ix:    ix,
		graph: graph.Build(ix.City(), graph.Options{IgnoreDists: true, TransferPenalty: opts.TransferPenalty}),
	}
}

// Graph returns the platform graph used by FewestTransfers
func (e *Engine) Graph() *graph.Graph { return e.graph }

func (e *Engine) check(req *Request) error {
	for _, s := range []string{req.Origin, req.Destination} {
		if _, ok := e.city.Stations[s]; !ok {
			return fmt.Errorf("station %q: %w", s, city.ErrNotFound)
		}
	}
	if req.Origin == req.Destination {
		return ErrSameStation
	}
	if req.K < 1 {
		req.K = 1
	}
	return nil
}

// Plan returns up to req.K journeys ordered by arrival, then transfers, then
// in-vehicle minutes. No two journeys share the same (train, board, alight)
// sequence.
func (e *Engine) Plan(ctx context.Context, req Request) ([]*Journey, error) {
	if err := e.check(&req); err != nil {
		return nil, err
	}
	sd, err := e.ix.ServiceDay(req.Date)
	if err != nil {
		return nil, err
	}

	s := &search{
		city: e.city,
		ix:   e.ix,
		sd:   sd,
		req:  req,
		kept: make(map[stateKey][]*label),
	}
	s.push(&label{kind: originLabel, station: req.Origin, time: req.Depart.Absolute()})

	var results []*Journey
	seen := make(map[string]bool)
	for s.pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		l := heap.Pop(&s.pq).(*label)
		if s.complete(l) {
			j := s.journey(l)
			sig := j.Signature()
			if seen[sig] {
				continue
			}
			seen[sig] = true
			results = append(results, j)
			if len(results) == req.K {
				break
			}
			continue
		}
		s.expand(l)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s to %s on %s: %w", req.Origin, req.Destination, req.Date.Format(clock.DateLayout), ErrUnreachable)
	}
	return results, nil
}

type search struct {
	city *city.City
	ix   *timetable.Index
	sd   *timetable.ServiceDay
	req  Request
	pq   labelQueue
	kept map[stateKey][]*label
	seq  int
}

// push queues a label unless k labels with the same state already cover it
func (s *search) push(l *label) {
	if l.kind != doneLabel {
		k := l.key()
		covered := 0
		for _, o := range s.kept[k] {
			if o.covers(l) {
				covered++
			}
		}
		if covered >= s.req.K {
			return
		}
		s.kept[k] = append(s.kept[k], l)
	}
	s.seq++
	l.seq = s.seq
	heap.Push(&s.pq, l)
}

func (s *search) complete(l *label) bool {
	switch l.kind {
	case doneLabel:
		return true
	case aboardLabel:
		return !l.boarded && l.station == s.req.Destination
	}
	return false
}

func (s *search) expand(l *label) {
	switch l.kind {
	case originLabel:
		s.boardAll(l, l.time, s.req.K, 0, func(string, string) (*Transfer, int, bool) { return nil, 0, true })
		s.walk(l)
	case aboardLabel:
		s.rideOn(l)
		if !l.boarded {
			s.transfer(l)
			s.walk(l)
		}
	case walkedLabel:
		s.afterWalk(l)
	}
}

// boardAll boards the first n departures of every running (line, direction)
// at the label's station; cost decides the transfer segment and its minutes,
// or rejects the direction
func (s *search) boardAll(l *label, at, n, transfers int, cost func(line, dir string) (*Transfer, int, bool)) {
	for _, line := range s.city.Stations[l.station].Lines {
		group, ok := s.sd.Group(line)
		if !ok {
			continue
		}
		for _, dir := range s.city.Lines[line].DirectionOrder {
			xfer, minutes, ok := cost(line, dir)
			if !ok {
				continue
			}
			calls := s.ix.Departures(line, dir, group, l.station, clock.FromAbsolute(at+minutes), s.req.Routes, n)
			for _, c := range calls {
				s.push(s.board(l, c, transfers, xfer))
			}
		}
	}
}

func (s *search) board(parent *label, c timetable.Call, transfers int, xfer *Transfer) *label {
	return &label{
		kind:      aboardLabel,
		station:   c.Train.Stops[c.Pos].Station,
		time:      c.Time.Absolute(),
		transfers: transfers,
		inVehicle: parent.inVehicle,
		train:     c.Train,
		pos:       c.Pos,
		boarded:   true,
		xfer:      xfer,
		parent:    parent,
	}
}

// rideOn stays aboard to the next call, continuing onto a through train at
// the end of the run
func (s *search) rideOn(l *label) {
	t, pos := l.train, l.pos+1
	if pos >= len(t.Stops) {
		next, ok := s.ix.Through().Next(t)
		if !ok || !s.req.Routes.Accepts(next) {
			return
		}
		t, pos = next, 1
	}
	stop := t.Stops[pos]
	s.push(&label{
		kind:      aboardLabel,
		station:   stop.Station,
		time:      stop.Time.Absolute(),
		transfers: l.transfers,
		inVehicle: l.inVehicle + stop.Time.Absolute() - l.time,
		train:     t,
		pos:       pos,
		parent:    l,
	})
}

// transfer changes onto every other (line, direction) at the station
func (s *search) transfer(l *label) {
	t := l.train
	_, continues := s.ix.Through().Next(t)
	final := l.pos == len(t.Stops)-1
	s.boardAll(l, l.time, 1, l.transfers+1, func(line, dir string) (*Transfer, int, bool) {
		if line == t.Line && dir == t.Direction && (!final || continues) {
			return nil, 0, false
		}
		k := city.TransferKey{FromLine: t.Line, FromDirection: t.Direction, ToLine: line, ToDirection: dir}
		m := s.city.TransferMinutes(l.station, k)
		return &Transfer{
			Station: l.station, ToStation: l.station,
			FromLine: t.Line, FromDirection: t.Direction,
			ToLine: line, ToDirection: dir,
			Minutes: m,
		}, m, true
	})
}

// walk starts out-of-station walks to every paired station. The walking time
// depends on the line boarded at the other end and is fixed in afterWalk.
func (s *search) walk(l *label) {
	var prevLine, prevDir string
	if l.train != nil {
		prevLine, prevDir = l.train.Line, l.train.Direction
	}
	for _, v := range s.city.VirtualPartners(l.station) {
		s.push(&label{
			kind:      walkedLabel,
			station:   v.Other(l.station),
			time:      l.time,
			transfers: l.transfers,
			inVehicle: l.inVehicle,
			walkFrom:  l.station,
			walkStart: l.time,
			prevLine:  prevLine,
			prevDir:   prevDir,
			parent:    l,
		})
	}
}

func (s *search) afterWalk(l *label) {
	v := s.city.VirtualTransfers[city.Pair(l.walkFrom, l.station)]
	fromOrigin := l.prevLine == ""
	walkSegment := func(m int, toLine, toDir string) *Transfer {
		return &Transfer{
			Station: l.walkFrom, ToStation: l.station,
			FromLine: l.prevLine, FromDirection: l.prevDir,
			ToLine: toLine, ToDirection: toDir,
			Minutes: m, Virtual: true,
		}
	}

	if l.station == s.req.Destination {
		var match func(city.TransferKey) bool
		if !fromOrigin {
			match = func(k city.TransferKey) bool {
				return k.FromLine == l.prevLine && (k.FromDirection == "" || k.FromDirection == l.prevDir)
			}
		}
		m, ok := v.MinMinutes(l.walkFrom, l.station, match)
		if !ok {
			return
		}
		s.push(&label{
			kind:      doneLabel,
			station:   l.station,
			time:      l.walkStart + m,
			transfers: l.transfers,
			inVehicle: l.inVehicle,
			xfer:      walkSegment(m, "", ""),
			parent:    l,
		})
		return
	}

	if fromOrigin {
		s.boardAll(l, l.walkStart, s.req.K, l.transfers, func(line, dir string) (*Transfer, int, bool) {
			m, ok := v.MinMinutes(l.walkFrom, l.station, func(k city.TransferKey) bool {
				return k.ToLine == line && (k.ToDirection == "" || k.ToDirection == dir)
			})
			return walkSegment(m, line, dir), m, ok
		})
		return
	}
	s.boardAll(l, l.walkStart, 1, l.transfers+1, func(line, dir string) (*Transfer, int, bool) {
		k := city.TransferKey{FromLine: l.prevLine, FromDirection: l.prevDir, ToLine: line, ToDirection: dir}
		m, ok := v.Minutes(l.walkFrom, l.station, k)
		return walkSegment(m, line, dir), m, ok
	})
}

// journey rebuilds the itinerary ending at a completed label
func (s *search) journey(end *label) *Journey {
	var chain []*label
	for cur := end; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	j := &Journey{
		Origin:      s.req.Origin,
		Destination: s.req.Destination,
		Arrive:      clock.FromAbsolute(end.time),
		Transfers:   end.transfers,
		InVehicle:   end.inVehicle,
	}
	var ride *Ride
	for i := len(chain) - 1; i >= 0; i-- {
		l := chain[i]
		switch l.kind {
		case aboardLabel:
			if l.boarded {
				if l.xfer != nil {
					j.Segments = append(j.Segments, Segment{Transfer: l.xfer})
				}
				stop := l.train.Stops[l.pos]
				ride = &Ride{
					Line:        l.train.Line,
					Direction:   l.train.Direction,
					Trains:      []*city.Train{l.train},
					Board:       stop,
					Alight:      stop,
					BoardIndex:  l.pos,
					AlightIndex: l.pos,
				}
				j.Segments = append(j.Segments, Segment{Ride: ride})
				continue
			}
			if ride.Trains[len(ride.Trains)-1] != l.train {
				ride.Trains = append(ride.Trains, l.train)
			}
			ride.Alight = l.train.Stops[l.pos]
			ride.AlightIndex = l.pos
		case doneLabel:
			j.Segments = append(j.Segments, Segment{Transfer: l.xfer})
		}
	}
	j.Depart = departure(j, s.req.Depart)
	return j
}

// departure is the boarding time of the first ride, less any walk before
// it; a journey without rides leaves at the requested time
func departure(j *Journey, requested clock.Clock) clock.Clock {
	walked := 0
	for _, seg := range j.Segments {
		if seg.Ride != nil {
			return seg.Ride.Board.Time.Add(-walked)
		}
		walked += seg.Transfer.Minutes
	}
	return requested
}
