// Package store loads cities from YAML documents, SQLite databases and
// Postgres. Every backend produces a Document, which Build turns into a
// finalized city.
package store

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Document is the serialized form of a city
type Document struct {
	Name                   string               `yaml:"name" validate:"required"`
	DefaultTransferMinutes int                  `yaml:"default_transfer_minutes" validate:"gte=0"`
	Lines                  []LineDoc            `yaml:"lines" validate:"required,min=1,dive"`
	Transfers              []TransferDoc        `yaml:"transfers,omitempty" validate:"dive"`
	VirtualTransfers       []VirtualTransferDoc `yaml:"virtual_transfers,omitempty" validate:"dive"`
	Through                []ThroughDoc         `yaml:"through,omitempty" validate:"dive"`
	Fares                  []FareDoc            `yaml:"fares,omitempty" validate:"dive"`
	Coordinates            []CoordinateDoc      `yaml:"coordinates,omitempty" validate:"dive"`
}

// LineDoc describes one line and its timetable
type LineDoc struct {
	Name       string         `yaml:"name" validate:"required"`
	Code       string         `yaml:"code,omitempty"`
	Loop       bool           `yaml:"loop,omitempty"`
	Stations   []string       `yaml:"stations" validate:"required,min=2,dive,required"`
	Distances  []int          `yaml:"distances" validate:"required,dive,gt=0"`
	Directions []DirectionDoc `yaml:"directions" validate:"required,min=1,dive"`
	DateGroups []DateGroupDoc `yaml:"date_groups" validate:"required,min=1,dive"`
	Services   []ServiceDoc   `yaml:"services,omitempty" validate:"dive"`
	Trains     []TrainDoc     `yaml:"trains,omitempty" validate:"dive"`
}

// DirectionDoc follows the line's station order, or its reverse
type DirectionDoc struct {
	Name     string `yaml:"name" validate:"required"`
	Reversed bool   `yaml:"reversed,omitempty"`
}

// DateGroupDoc is a calendar predicate
type DateGroupDoc struct {
	Name         string   `yaml:"name" validate:"required"`
	Weekdays     []string `yaml:"weekdays,omitempty"`
	Dates        []string `yaml:"dates,omitempty" validate:"dive,datetime=2006-01-02"`
	ExcludeDates []string `yaml:"exclude_dates,omitempty" validate:"dive,datetime=2006-01-02"`
	From         string   `yaml:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Until        string   `yaml:"until,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ServiceDoc generates regular-interval trains. Stations default to the whole
// direction; Running holds the minutes between consecutive stations.
type ServiceDoc struct {
	Direction  string   `yaml:"direction" validate:"required"`
	DateGroups []string `yaml:"date_groups" validate:"required,min=1"`
	Prefix     string   `yaml:"prefix" validate:"required"`
	Stations   []string `yaml:"stations,omitempty"`
	Running    []int    `yaml:"running" validate:"required,dive,gt=0"`
	First      string   `yaml:"first" validate:"required"`
	Last       string   `yaml:"last" validate:"required"`
	Headway    int      `yaml:"headway" validate:"gt=0"`
	Routes     []string `yaml:"routes,omitempty"`
}

// TrainDoc is an explicitly listed train
type TrainDoc struct {
	Code      string    `yaml:"code" validate:"required"`
	Direction string    `yaml:"direction" validate:"required"`
	DateGroup string    `yaml:"date_group" validate:"required"`
	Routes    []string  `yaml:"routes,omitempty"`
	Stops     []StopDoc `yaml:"stops" validate:"required,min=2,dive"`
}

// StopDoc is one call; Time uses the timetable form ("25:10" or "01:10+1")
type StopDoc struct {
	Station string `yaml:"station" validate:"required"`
	Time    string `yaml:"time" validate:"required"`
}

// TransferDoc is an in-station transfer. Empty directions are wildcards.
type TransferDoc struct {
	Station       string `yaml:"station" validate:"required"`
	FromLine      string `yaml:"from_line" validate:"required"`
	FromDirection string `yaml:"from_direction,omitempty"`
	ToLine        string `yaml:"to_line" validate:"required"`
	ToDirection   string `yaml:"to_direction,omitempty"`
	Minutes       int    `yaml:"minutes" validate:"gte=0"`
}

// VirtualTransferDoc is an out-of-station walk between two stations
type VirtualTransferDoc struct {
	From          string `yaml:"from" validate:"required"`
	To            string `yaml:"to" validate:"required,nefield=From"`
	FromLine      string `yaml:"from_line" validate:"required"`
	FromDirection string `yaml:"from_direction,omitempty"`
	ToLine        string `yaml:"to_line" validate:"required"`
	ToDirection   string `yaml:"to_direction,omitempty"`
	Minutes       int    `yaml:"minutes" validate:"gte=0"`
}

// ThroughDoc declares through running across line segments
type ThroughDoc struct {
	Name       string              `yaml:"name" validate:"required"`
	MaxLayover int                 `yaml:"max_layover" validate:"gte=0"`
	Segments   []ThroughSegmentDoc `yaml:"segments" validate:"required,min=2,dive"`
	Trains     [][]string          `yaml:"trains,omitempty"`
}

// ThroughSegmentDoc is one leg of a through service
type ThroughSegmentDoc struct {
	Line      string `yaml:"line" validate:"required"`
	Direction string `yaml:"direction" validate:"required"`
	DateGroup string `yaml:"date_group" validate:"required"`
}

// FareDoc is one fare rule; rules apply in order
type FareDoc struct {
	Kind           string        `yaml:"kind" validate:"oneof=flat distance"`
	Lines          []string      `yaml:"lines,omitempty"`
	Price          float64       `yaml:"price,omitempty" validate:"gte=0"`
	Tiers          []FareTierDoc `yaml:"tiers,omitempty" validate:"required_if=Kind distance,dive"`
	ExtraEvery     int           `yaml:"extra_every,omitempty" validate:"gte=0"`
	ExtraPrice     float64       `yaml:"extra_price,omitempty" validate:"gte=0"`
	DiscountBefore string        `yaml:"discount_before,omitempty"`
	DiscountRate   float64       `yaml:"discount_rate,omitempty" validate:"gte=0,lt=1"`
	ExcludedLines  []string      `yaml:"excluded_lines,omitempty"`
}

// FareTierDoc prices rides up to a distance in metres
type FareTierDoc struct {
	UpTo  int     `yaml:"up_to" validate:"gt=0"`
	Price float64 `yaml:"price" validate:"gte=0"`
}

// CoordinateDoc places a station
type CoordinateDoc struct {
	Station string  `yaml:"station" validate:"required"`
	Lat     float64 `yaml:"lat" validate:"latitude"`
	Lon     float64 `yaml:"lon" validate:"longitude"`
}

var validate = validator.New()

// Validate checks the document's field constraints
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", city.ErrInvalid, err)
	}
	return nil
}

// ParseYAML decodes and validates a YAML city document
func ParseYAML(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse city document: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadYAML reads a YAML city document from disk
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseYAML(data)
}

// Encode renders the document as YAML
func (d *Document) Encode() ([]byte, error) {
	return yaml.Marshal(d)
}

// Expand replaces every service block with the trains it generates
func (d *Document) Expand() error {
	for i := range d.Lines {
		ld := &d.Lines[i]
		for _, s := range ld.Services {
			trains, err := s.trains(ld)
			if err != nil {
				return fmt.Errorf("line %s: %w", ld.Name, err)
			}
			ld.Trains = append(ld.Trains, trains...)
		}
		ld.Services = nil
	}
	return nil
}

func (s ServiceDoc) trains(ld *LineDoc) ([]TrainDoc, error) {
	stations := s.Stations
	if len(stations) == 0 {
		stations = ld.directionStations(s.Direction)
		if ld.Loop && len(stations) > 0 {
			stations = append(stations, stations[0])
		}
	}
	if len(s.Running) != len(stations)-1 {
		return nil, fmt.Errorf("%w: service %s has %d stations but %d running times",
			city.ErrInvalid, s.Prefix, len(stations), len(s.Running))
	}
	first, err := clock.ParseSchedule(s.First)
	if err != nil {
		return nil, err
	}
	last, err := clock.ParseSchedule(s.Last)
	if err != nil {
		return nil, err
	}

	var out []TrainDoc
	for _, group := range s.DateGroups {
		seq := 1
		for dep := first.Absolute(); dep <= last.Absolute(); dep += s.Headway {
			t := TrainDoc{
				Code:      fmt.Sprintf("%s%03d", s.Prefix, seq),
				Direction: s.Direction,
				DateGroup: group,
				Routes:    s.Routes,
			}
			at := dep
			for i, station := range stations {
				if i > 0 {
					at += s.Running[i-1]
				}
				t.Stops = append(t.Stops, StopDoc{Station: station, Time: clock.FromAbsolute(at).ScheduleString()})
			}
			out = append(out, t)
			seq++
		}
	}
	return out, nil
}

func (ld *LineDoc) directionStations(name string) []string {
	for _, d := range ld.Directions {
		if d.Name != name {
			continue
		}
		out := make([]string, len(ld.Stations))
		for i, s := range ld.Stations {
			if d.Reversed {
				out[len(out)-1-i] = s
			} else {
				out[i] = s
			}
		}
		if d.Reversed && ld.Loop {
			// a reversed loop still starts at the first station
			out = append(out[len(out)-1:], out[:len(out)-1]...)
		}
		return out
	}
	return nil
}

// Build turns the document into a finalized city
func (d *Document) Build() (*city.City, error) {
	c := city.New(d.Name)
	c.DefaultTransferMinutes = d.DefaultTransferMinutes

	for i := range d.Lines {
		l, err := d.Lines[i].build()
		if err != nil {
			return nil, err
		}
		if err := c.AddLine(l); err != nil {
			return nil, err
		}
	}
	for _, t := range d.Transfers {
		k := city.TransferKey{FromLine: t.FromLine, FromDirection: t.FromDirection, ToLine: t.ToLine, ToDirection: t.ToDirection}
		if err := c.AddTransfer(t.Station, k, t.Minutes); err != nil {
			return nil, err
		}
	}
	for _, v := range d.VirtualTransfers {
		k := city.TransferKey{FromLine: v.FromLine, FromDirection: v.FromDirection, ToLine: v.ToLine, ToDirection: v.ToDirection}
		if err := c.AddVirtualTransfer(v.From, v.To, k, v.Minutes); err != nil {
			return nil, err
		}
	}
	for _, td := range d.Through {
		spec := &city.ThroughSpec{Name: td.Name, MaxLayover: td.MaxLayover, Trains: td.Trains}
		for _, seg := range td.Segments {
			spec.Segments = append(spec.Segments, city.ThroughSegment{Line: seg.Line, Direction: seg.Direction, DateGroup: seg.DateGroup})
		}
		if err := c.AddThroughSpec(spec); err != nil {
			return nil, err
		}
	}
	for _, f := range d.Fares {
		rule, err := f.rule()
		if err != nil {
			return nil, err
		}
		c.FareRules = append(c.FareRules, rule)
	}
	for _, co := range d.Coordinates {
		if err := c.SetCoordinates(co.Station, co.Lat, co.Lon); err != nil {
			return nil, err
		}
	}
	if err := c.Finalize(); err != nil {
		return nil, fmt.Errorf("failed to finalize city %s: %w", d.Name, err)
	}
	return c, nil
}

func (ld *LineDoc) build() (*city.Line, error) {
	l, err := city.NewLine(ld.Name, ld.Code, ld.Stations, ld.Distances, ld.Loop)
	if err != nil {
		return nil, err
	}
	for _, dd := range ld.Directions {
		l.AddDirection(dd.Name, dd.Reversed)
	}
	for _, gd := range ld.DateGroups {
		g := &city.DateGroup{
			Name:         gd.Name,
			Dates:        gd.Dates,
			ExcludeDates: gd.ExcludeDates,
			From:         gd.From,
			Until:        gd.Until,
		}
		for _, w := range gd.Weekdays {
			day, ok := city.ParseWeekday(w)
			if !ok {
				return nil, fmt.Errorf("%w: line %s date group %s: unknown weekday %q", city.ErrInvalid, ld.Name, gd.Name, w)
			}
			g.Weekdays = append(g.Weekdays, day)
		}
		l.AddDateGroup(g)
	}

	trains := ld.Trains
	for _, s := range ld.Services {
		generated, err := s.trains(ld)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", ld.Name, err)
		}
		trains = append(trains, generated...)
	}
	for _, td := range trains {
		t := &city.Train{Code: td.Code, Direction: td.Direction, DateGroup: td.DateGroup, Routes: td.Routes}
		for _, sd := range td.Stops {
			at, err := clock.ParseSchedule(sd.Time)
			if err != nil {
				return nil, fmt.Errorf("line %s train %s at %s: %w", ld.Name, td.Code, sd.Station, err)
			}
			t.Stops = append(t.Stops, city.Stop{Station: sd.Station, Time: at})
		}
		if err := l.AddTrain(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (f FareDoc) rule() (city.FareRule, error) {
	switch f.Kind {
	case "flat":
		return &city.FlatLineFare{Lines: f.Lines, Price: f.Price}, nil
	case "distance":
		r := &city.DistanceFare{
			ExtraEvery:    f.ExtraEvery,
			ExtraPrice:    f.ExtraPrice,
			DiscountRate:  f.DiscountRate,
			ExcludedLines: f.ExcludedLines,
		}
		for _, t := range f.Tiers {
			r.Tiers = append(r.Tiers, city.FareTier{UpTo: t.UpTo, Price: t.Price})
		}
		if f.DiscountBefore != "" {
			at, err := clock.Parse(f.DiscountBefore)
			if err != nil {
				return nil, fmt.Errorf("fare discount_before: %w", err)
			}
			r.DiscountBefore = &at
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: unknown fare kind %q", city.ErrInvalid, f.Kind)
}
