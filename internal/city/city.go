// Package city holds the immutable reference data of a timetabled rail network:
// lines, stations, directions, date groups, trains, transfers, through-running
// declarations and fare rules.
//
// A City is assembled once (by a store loader or by hand in tests), finalized,
// and then shared read-only between any number of concurrent queries.
package city

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when a station, line or direction cannot be resolved
	ErrNotFound = errors.New("not found")
	// ErrNoService is returned when no date group of a line covers a date
	ErrNoService = errors.New("no service")
	// ErrInvalid is returned when reference data violates an invariant
	ErrInvalid = errors.New("invalid city data")
)

// Station is a named stop served by one or more lines
type Station struct {
	Name  string
	Lines []string // sorted
	Lat   *float64
	Lon   *float64
}

// City is the whole network
type City struct {
	Name                   string
	Lines                  map[string]*Line
	LineOrder              []string
	Stations               map[string]*Station
	Transfers              map[string]TransferTable // station -> in-station transfers
	VirtualTransfers       map[StationPair]*VirtualTransfer
	ThroughSpecs           []*ThroughSpec
	FareRules              []FareRule
	DefaultTransferMinutes int

	trains    []*Train // indexed by Train.ID
	virtualOf map[string][]*VirtualTransfer
	finalized bool
}

// New creates an empty city
func New(name string) *City {
	return &City{
		Name:             name,
		Lines:            make(map[string]*Line),
		Stations:         make(map[string]*Station),
		Transfers:        make(map[string]TransferTable),
		VirtualTransfers: make(map[StationPair]*VirtualTransfer),
		virtualOf:        make(map[string][]*VirtualTransfer),
	}
}

// AddLine registers a line. Stations are created on demand.
func (c *City) AddLine(l *Line) error {
	if l.Name == "" {
		return fmt.Errorf("%w: line without a name", ErrInvalid)
	}
	if _, exists := c.Lines[l.Name]; exists {
		return fmt.Errorf("%w: line %q already exists", ErrInvalid, l.Name)
	}
	c.Lines[l.Name] = l
	c.LineOrder = append(c.LineOrder, l.Name)
	for _, s := range l.Stations {
		if _, ok := c.Stations[s]; !ok {
			c.Stations[s] = &Station{Name: s}
		}
	}
	return nil
}

// SetCoordinates attaches optional coordinates to a station
func (c *City) SetCoordinates(station string, lat, lon float64) error {
	s, ok := c.Stations[station]
	if !ok {
		return fmt.Errorf("station %q: %w", station, ErrNotFound)
	}
	s.Lat, s.Lon = &lat, &lon
	return nil
}

// AddTransfer registers an in-station transfer time
func (c *City) AddTransfer(station string, key TransferKey, minutes int) error {
	if _, ok := c.Stations[station]; !ok {
		return fmt.Errorf("transfer at %q: %w", station, ErrNotFound)
	}
	if minutes < 0 {
		return fmt.Errorf("%w: negative transfer time at %q", ErrInvalid, station)
	}
	tt, ok := c.Transfers[station]
	if !ok {
		tt = make(TransferTable)
		c.Transfers[station] = tt
	}
	tt[key] = minutes
	return nil
}

// AddVirtualTransfer registers a walk between two distinct stations. The walk
// is oriented by which of the two stations each line of the key serves.
func (c *City) AddVirtualTransfer(a, b string, key TransferKey, minutes int) error {
	if a == b {
		return fmt.Errorf("%w: virtual transfer from %q to itself", ErrInvalid, a)
	}
	for _, s := range []string{a, b} {
		if _, ok := c.Stations[s]; !ok {
			return fmt.Errorf("virtual transfer station %q: %w", s, ErrNotFound)
		}
	}
	from, to := a, b
	if !c.lineServes(key.FromLine, a) || !c.lineServes(key.ToLine, b) {
		if c.lineServes(key.FromLine, b) && c.lineServes(key.ToLine, a) {
			from, to = b, a
		} else {
			return fmt.Errorf("%w: virtual transfer %s/%s does not match lines %s -> %s",
				ErrInvalid, a, b, key.FromLine, key.ToLine)
		}
	}
	pair := Pair(a, b)
	v, ok := c.VirtualTransfers[pair]
	if !ok {
		v = &VirtualTransfer{Pair: pair, tables: make(map[[2]string]TransferTable)}
		c.VirtualTransfers[pair] = v
	}
	v.add(from, to, key, minutes)
	return nil
}

// AddThroughSpec registers a through-running declaration
func (c *City) AddThroughSpec(spec *ThroughSpec) error {
	if len(spec.Segments) < 2 {
		return fmt.Errorf("%w: through spec %q needs at least two segments", ErrInvalid, spec.Name)
	}
	for _, seg := range spec.Segments {
		l, ok := c.Lines[seg.Line]
		if !ok {
			return fmt.Errorf("through spec %q line %q: %w", spec.Name, seg.Line, ErrNotFound)
		}
		if _, ok := l.Directions[seg.Direction]; !ok {
			return fmt.Errorf("through spec %q direction %q: %w", spec.Name, seg.Direction, ErrNotFound)
		}
		if _, ok := l.DateGroups[seg.DateGroup]; !ok {
			return fmt.Errorf("through spec %q date group %q: %w", spec.Name, seg.DateGroup, ErrNotFound)
		}
	}
	c.ThroughSpecs = append(c.ThroughSpecs, spec)
	return nil
}

func (c *City) lineServes(line, station string) bool {
	l, ok := c.Lines[line]
	if !ok {
		return false
	}
	return l.StationIndex(station) >= 0
}

// Finalize assigns train ids, builds station membership and validates the data.
// It must be called once after all lines, transfers and specs were added.
func (c *City) Finalize() error {
	if c.finalized {
		return nil
	}
	c.trains = c.trains[:0]
	for _, s := range c.Stations {
		s.Lines = s.Lines[:0]
	}
	for _, name := range c.LineOrder {
		l := c.Lines[name]
		for _, s := range l.Stations {
			st := c.Stations[s]
			st.Lines = append(st.Lines, l.Name)
		}
		for _, dir := range l.DirectionOrder {
			for _, group := range l.DateGroupOrder {
				trains := l.Trains[dir][group]
				sort.SliceStable(trains, func(i, j int) bool {
					a, b := trains[i].First().Time, trains[j].First().Time
					if a != b {
						return a.Before(b)
					}
					return trains[i].Code < trains[j].Code
				})
				for _, t := range trains {
					t.ID = len(c.trains)
					c.trains = append(c.trains, t)
				}
			}
		}
	}
	for _, s := range c.Stations {
		sort.Strings(s.Lines)
	}

	c.virtualOf = make(map[string][]*VirtualTransfer)
	pairs := make([]StationPair, 0, len(c.VirtualTransfers))
	for p := range c.VirtualTransfers {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
	for _, p := range pairs {
		v := c.VirtualTransfers[p]
		c.virtualOf[p[0]] = append(c.virtualOf[p[0]], v)
		c.virtualOf[p[1]] = append(c.virtualOf[p[1]], v)
	}

	if err := c.Validate(); err != nil {
		return err
	}
	c.finalized = true
	return nil
}

// Train returns the train with the given id
func (c *City) Train(id int) *Train {
	if id < 0 || id >= len(c.trains) {
		return nil
	}
	return c.trains[id]
}

// Trains returns every train, indexed by id
func (c *City) Trains() []*Train {
	return c.trains
}

// StationNames returns every station name, sorted
func (c *City) StationNames() []string {
	names := make([]string, 0, len(c.Stations))
	for name := range c.Stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StationLines returns the lines serving a station
func (c *City) StationLines(station string) []*Line {
	s, ok := c.Stations[station]
	if !ok {
		return nil
	}
	lines := make([]*Line, 0, len(s.Lines))
	for _, name := range s.Lines {
		lines = append(lines, c.Lines[name])
	}
	return lines
}

// VirtualPartners returns the virtual transfers touching a station, in pair order
func (c *City) VirtualPartners(station string) []*VirtualTransfer {
	return c.virtualOf[station]
}
