// Package query is the facade over the planner: it parses and resolves user
// input, runs the requested operation against shared reference data and
// returns structured results or rendered text.
package query

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/planner"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

var (
	// ErrInput is returned for malformed dates, times, strategies or k
	ErrInput = errors.New("invalid input")
	// ErrAmbiguous is returned when a train lookup matches more than one train
	ErrAmbiguous = errors.New("ambiguous")
)

// Options configure a Service
type Options struct {
	Matcher         city.Matcher
	TransferPenalty int
	Timeout         time.Duration // per query, 0 disables
	MaxK            int           // 0 means unlimited
}

// Service answers queries over one city. It is safe for concurrent use.
type Service struct {
	city    *city.City
	ix      *timetable.Index
	engine  *planner.Engine
	matcher city.Matcher
	timeout time.Duration
	maxK    int
}

// NewService indexes a finalized city and builds the planner
func NewService(c *city.City, opts Options) (*Service, error) {
	ix, err := timetable.New(c)
	if err != nil {
		return nil, fmt.Errorf("failed to index timetable: %w", err)
	}
	m := opts.Matcher
	if m == nil {
		m = city.SubstringMatcher{}
	}
	return &Service{
		city:    c,
		ix:      ix,
		engine:  planner.NewEngine(ix, planner.Options{TransferPenalty: opts.TransferPenalty}),
		matcher: m,
		timeout: opts.Timeout,
		maxK:    opts.MaxK,
	}, nil
}

// City returns the reference data
func (s *Service) City() *city.City { return s.city }

// Stats summarizes the loaded network
type Stats struct {
	City          string `json:"city"`
	Lines         int    `json:"lines"`
	Stations      int    `json:"stations"`
	Trains        int    `json:"trains"`
	ThroughTrains int    `json:"throughTrains"`
	GraphNodes    int    `json:"graphNodes"`
	GraphEdges    int    `json:"graphEdges"`
}

// Stats reports the size of the loaded network
func (s *Service) Stats() Stats {
	g := s.engine.Graph()
	return Stats{
		City:          s.city.Name,
		Lines:         len(s.city.Lines),
		Stations:      len(s.city.Stations),
		Trains:        len(s.city.Trains()),
		ThroughTrains: s.ix.Through().Len(),
		GraphNodes:    g.NodeCount(),
		GraphEdges:    g.EdgeCount(),
	}
}

func (s *Service) station(input string) (string, error) {
	return s.city.ResolveStation(s.matcher, input)
}

func (s *Service) line(input string) (string, error) {
	return s.city.ResolveLine(s.matcher, input)
}

func parseDate(s string) (time.Time, error) {
	d, err := clock.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return d, nil
}

func parseTime(s string) (clock.Clock, error) {
	c, err := clock.Parse(s)
	if err != nil {
		return clock.Clock{}, fmt.Errorf("%w: %v", ErrInput, err)
	}
	return c, nil
}

// UserMessage renders an error for display: the literal "Unreachable" when
// no journey exists, "Error: ..." otherwise
func UserMessage(err error) string {
	if errors.Is(err, planner.ErrUnreachable) {
		return "Unreachable"
	}
	return "Error: " + err.Error()
}

// Lazy builds a Service on first use. Concurrent callers wait for the one
// build and share its result, including a failure.
type Lazy struct {
	once  sync.Once
	build func() (*Service, error)
	svc   *Service
	err   error
}

// NewLazy wraps a build function
func NewLazy(build func() (*Service, error)) *Lazy {
	return &Lazy{build: build}
}

// Get returns the service, building it at most once
func (l *Lazy) Get() (*Service, error) {
	l.once.Do(func() {
		l.svc, l.err = l.build()
	})
	return l.svc, l.err
}
