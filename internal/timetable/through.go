package timetable

import (
	"fmt"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// ThroughTrain is one physical run continuing across the segments of a
// through spec
type ThroughTrain struct {
	Spec   *city.ThroughSpec
	Trains []*city.Train // one per segment
}

// Codes returns the train codes of every segment
func (tt *ThroughTrain) Codes() []string {
	codes := make([]string, len(tt.Trains))
	for i, t := range tt.Trains {
		codes[i] = t.Code
	}
	return codes
}

// ThroughIndex maps trains to their through-running continuation
type ThroughIndex struct {
	bySpec map[*city.ThroughSpec][]*ThroughTrain
	next   map[int]*city.Train
	prev   map[int]*city.Train
	of     map[int]*ThroughTrain
}

func newThroughIndex(c *city.City) (*ThroughIndex, error) {
	ti := &ThroughIndex{
		bySpec: make(map[*city.ThroughSpec][]*ThroughTrain),
		next:   make(map[int]*city.Train),
		prev:   make(map[int]*city.Train),
		of:     make(map[int]*ThroughTrain),
	}
	for _, spec := range c.ThroughSpecs {
		var (
			matched []*ThroughTrain
			err     error
		)
		if len(spec.Trains) > 0 {
			matched, err = matchExplicit(c, spec)
		} else {
			matched = matchByContinuity(c, spec)
		}
		if err != nil {
			return nil, err
		}
		for _, tt := range matched {
			if err := ti.add(tt); err != nil {
				return nil, err
			}
		}
	}
	return ti, nil
}

func (ti *ThroughIndex) add(tt *ThroughTrain) error {
	for i := 0; i+1 < len(tt.Trains); i++ {
		a, b := tt.Trains[i], tt.Trains[i+1]
		if n, ok := ti.next[a.ID]; ok && n != b {
			return fmt.Errorf("%w: train %s continues as both %s and %s", city.ErrInvalid, a.Code, n.Code, b.Code)
		}
		if p, ok := ti.prev[b.ID]; ok && p != a {
			return fmt.Errorf("%w: train %s continues both %s and %s", city.ErrInvalid, b.Code, p.Code, a.Code)
		}
		ti.next[a.ID] = b
		ti.prev[b.ID] = a
	}
	for _, t := range tt.Trains {
		ti.of[t.ID] = tt
	}
	ti.bySpec[tt.Spec] = append(ti.bySpec[tt.Spec], tt)
	return nil
}

func segmentTrains(c *city.City, seg city.ThroughSegment) []*city.Train {
	return c.Lines[seg.Line].TrainsFor(seg.Direction, seg.DateGroup)
}

// joins reports whether b can continue a at the junction
func joins(a, b *city.Train, maxLayover int) bool {
	if a.Last().Station != b.First().Station {
		return false
	}
	wait := b.First().Time.Sub(a.Last().Time)
	return wait >= 0 && wait <= maxLayover
}

func matchExplicit(c *city.City, spec *city.ThroughSpec) ([]*ThroughTrain, error) {
	var out []*ThroughTrain
	for _, codes := range spec.Trains {
		if len(codes) != len(spec.Segments) {
			return nil, fmt.Errorf("%w: through spec %q lists %d codes for %d segments",
				city.ErrInvalid, spec.Name, len(codes), len(spec.Segments))
		}
		tt := &ThroughTrain{Spec: spec}
		for i, code := range codes {
			var found *city.Train
			for _, t := range segmentTrains(c, spec.Segments[i]) {
				if t.Code == code {
					found = t
					break
				}
			}
			if found == nil {
				return nil, fmt.Errorf("through spec %q train %s: %w", spec.Name, code, city.ErrNotFound)
			}
			if i > 0 {
				prev := tt.Trains[i-1]
				if prev.Last().Station != found.First().Station || found.First().Time.Before(prev.Last().Time) {
					return nil, fmt.Errorf("%w: through spec %q: %s does not continue %s",
						city.ErrInvalid, spec.Name, found.Code, prev.Code)
				}
			}
			tt.Trains = append(tt.Trains, found)
		}
		out = append(out, tt)
	}
	return out, nil
}

// matchByContinuity chains every first-segment train to the earliest unused
// train of each following segment that departs the junction within the layover
func matchByContinuity(c *city.City, spec *city.ThroughSpec) []*ThroughTrain {
	used := make(map[int]bool)
	var out []*ThroughTrain
	for _, first := range segmentTrains(c, spec.Segments[0]) {
		chain := []*city.Train{first}
		for _, seg := range spec.Segments[1:] {
			cur := chain[len(chain)-1]
			var best *city.Train
			for _, t := range segmentTrains(c, seg) {
				if used[t.ID] || !joins(cur, t, spec.MaxLayover) {
					continue
				}
				if best == nil || t.First().Time.Before(best.First().Time) {
					best = t
				}
			}
			if best == nil {
				break
			}
			chain = append(chain, best)
		}
		if len(chain) != len(spec.Segments) {
			continue
		}
		for _, t := range chain[1:] {
			used[t.ID] = true
		}
		out = append(out, &ThroughTrain{Spec: spec, Trains: chain})
	}
	return out
}

// Next returns the train continuing t without a transfer
func (ti *ThroughIndex) Next(t *city.Train) (*city.Train, bool) {
	n, ok := ti.next[t.ID]
	return n, ok
}

// Of returns the through train t belongs to
func (ti *ThroughIndex) Of(t *city.Train) (*ThroughTrain, bool) {
	tt, ok := ti.of[t.ID]
	return tt, ok
}

// Trains returns the through trains matched for a spec
func (ti *ThroughIndex) Trains(spec *city.ThroughSpec) []*ThroughTrain {
	return ti.bySpec[spec]
}

// Len returns the number of through trains
func (ti *ThroughIndex) Len() int {
	n := 0
	for _, tts := range ti.bySpec {
		n += len(tts)
	}
	return n
}
