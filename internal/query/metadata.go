package query

import (
	"fmt"
	"slices"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// ListLines returns every line name in declaration order
func (s *Service) ListLines() []string {
	return slices.Clone(s.city.LineOrder)
}

// ListStations returns a line's stations in the order of its first direction,
// or every station sorted when line is empty
func (s *Service) ListStations(line string) ([]string, error) {
	if line == "" {
		return s.city.StationNames(), nil
	}
	name, err := s.line(line)
	if err != nil {
		return nil, err
	}
	l := s.city.Lines[name]
	if len(l.DirectionOrder) == 0 {
		return slices.Clone(l.Stations), nil
	}
	return slices.Clone(l.Directions[l.DirectionOrder[0]].Stations), nil
}

// DirectionInfo is one direction of a line
type DirectionInfo struct {
	Line      string   `json:"line"`
	Direction string   `json:"direction"`
	Stations  []string `json:"stations"`
}

// ListDirections returns the directions of a line, or of every line when line
// is empty. When both from and to are given only directions in which from
// comes before to are kept.
func (s *Service) ListDirections(line, from, to string) ([]DirectionInfo, error) {
	if (from == "") != (to == "") {
		return nil, fmt.Errorf("%w: origin and destination must be given together", ErrInput)
	}
	lines := s.city.LineOrder
	if line != "" {
		name, err := s.line(line)
		if err != nil {
			return nil, err
		}
		lines = []string{name}
	}
	if from != "" {
		var err error
		if from, err = s.station(from); err != nil {
			return nil, err
		}
		if to, err = s.station(to); err != nil {
			return nil, err
		}
	}

	var out []DirectionInfo
	for _, name := range lines {
		l := s.city.Lines[name]
		for _, dir := range l.DirectionOrder {
			d := l.Directions[dir]
			if from != "" && !d.Precedes(from, to, l.Loop) {
				continue
			}
			out = append(out, DirectionInfo{Line: name, Direction: dir, Stations: slices.Clone(d.Stations)})
		}
	}
	return out, nil
}

// TransferMetric is one transfer entry at a station or across a virtual pair
type TransferMetric struct {
	Station       string `json:"station"`
	ToStation     string `json:"toStation"`
	FromLine      string `json:"fromLine"`
	FromDirection string `json:"fromDirection,omitempty"`
	ToLine        string `json:"toLine"`
	ToDirection   string `json:"toDirection,omitempty"`
	Minutes       int    `json:"minutes"`
	Virtual       bool   `json:"virtual"`
}

// TransferMetrics lists the transfers at a station and to or from its
// virtually paired stations, optionally filtered by line. Entries are
// deduplicated by (from line, to line), keeping the first.
func (s *Service) TransferMetrics(station, fromLine, toLine string) ([]TransferMetric, error) {
	st, err := s.station(station)
	if err != nil {
		return nil, err
	}
	if fromLine != "" {
		if fromLine, err = s.line(fromLine); err != nil {
			return nil, err
		}
	}
	if toLine != "" {
		if toLine, err = s.line(toLine); err != nil {
			return nil, err
		}
	}

	type linePair struct{ from, to string }
	seen := make(map[linePair]bool)
	var out []TransferMetric
	add := func(from, to string, tt city.TransferTable, virtual bool) {
		for _, e := range tt.Entries() {
			k := e.Key
			if fromLine != "" && k.FromLine != fromLine || toLine != "" && k.ToLine != toLine {
				continue
			}
			p := linePair{k.FromLine, k.ToLine}
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, TransferMetric{
				Station: from, ToStation: to,
				FromLine: k.FromLine, FromDirection: k.FromDirection,
				ToLine: k.ToLine, ToDirection: k.ToDirection,
				Minutes: e.Minutes, Virtual: virtual,
			})
		}
	}

	add(st, st, s.city.Transfers[st], false)
	for _, v := range s.city.VirtualPartners(st) {
		other := v.Other(st)
		add(st, other, v.Table(st, other), true)
		add(other, st, v.Table(other, st), true)
	}
	return out, nil
}
