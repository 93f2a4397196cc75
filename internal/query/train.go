package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// TrainRequest identifies a train by code, or by a station and an
// approximate calling time
type TrainRequest struct {
	Line      string
	Date      string
	Code      string
	Station   string
	Time      string
	Direction string // optional, narrows a station lookup
}

// TrainStop is one call in a train detail
type TrainStop struct {
	Station  string      `json:"station"`
	Time     clock.Clock `json:"-"`
	Arrival  string      `json:"arrival"`
	Distance int         `json:"distance"` // metres from the previous stop
	Speed    float64     `json:"speed"`    // km/h over the previous hop
}

// TrainDetail is the full run of one train
type TrainDetail struct {
	Line      string      `json:"line"`
	Direction string      `json:"direction"`
	DateGroup string      `json:"dateGroup"`
	Code      string      `json:"code"`
	Routes    []string    `json:"routes,omitempty"`
	Stops     []TrainStop `json:"stops"`
	Distance  int         `json:"distance"`
	Minutes   int         `json:"minutes"`
	Through   []string    `json:"through,omitempty"` // codes of the whole through run
}

// TrainDetail finds one train. A station lookup picks the train calling
// nearest to the given time; several equally near trains are ambiguous.
func (s *Service) TrainDetail(req TrainRequest) (*TrainDetail, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Code == "" && (req.Station == "" || req.Time == "") {
		return nil, fmt.Errorf("%w: either a train code or a station and time is required", ErrInput)
	}
	name, err := s.line(req.Line)
	if err != nil {
		return nil, err
	}
	l := s.city.Lines[name]
	group, err := l.DetermineDateGroup(date)
	if err != nil {
		return nil, err
	}
	dirs := l.DirectionOrder
	if req.Direction != "" {
		if _, ok := l.Directions[req.Direction]; !ok {
			return nil, fmt.Errorf("direction %q of %s: %w", req.Direction, name, city.ErrNotFound)
		}
		dirs = []string{req.Direction}
	}

	var matches []*city.Train
	if req.Code != "" {
		for _, dir := range dirs {
			for _, t := range l.TrainsFor(dir, group.Name) {
				if t.Code == req.Code {
					matches = append(matches, t)
				}
			}
		}
	} else {
		matches, err = s.nearest(l, dirs, group.Name, req.Station, req.Time)
		if err != nil {
			return nil, err
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("train on %s (%s): %w", name, group.Name, city.ErrNotFound)
	case 1:
		return s.detail(l, matches[0]), nil
	}
	codes := make([]string, len(matches))
	for i, t := range matches {
		codes[i] = t.Code
	}
	return nil, fmt.Errorf("%w: %d trains match (%s)", ErrAmbiguous, len(matches), strings.Join(codes, ", "))
}

func (s *Service) nearest(l *city.Line, dirs []string, group, station, at string) ([]*city.Train, error) {
	st, err := s.station(station)
	if err != nil {
		return nil, err
	}
	if l.StationIndex(st) < 0 {
		return nil, fmt.Errorf("station %s on %s: %w", st, l.Name, city.ErrNotFound)
	}
	want, err := parseTime(at)
	if err != nil {
		return nil, err
	}

	best := math.MaxInt
	var out []*city.Train
	for _, dir := range dirs {
		for _, t := range l.TrainsFor(dir, group) {
			diff := math.MaxInt
			for _, stop := range t.Stops {
				if stop.Station == st {
					// after-midnight calls belong to the previous service day
					diff = min(diff, abs(stop.Time.Sub(want)), abs(stop.Time.Sub(want.Add(clock.MinutesPerDay))))
				}
			}
			switch {
			case diff < best:
				best, out = diff, []*city.Train{t}
			case diff == best && diff != math.MaxInt:
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (s *Service) detail(l *city.Line, t *city.Train) *TrainDetail {
	d := &TrainDetail{
		Line:      t.Line,
		Direction: t.Direction,
		DateGroup: t.DateGroup,
		Code:      t.Code,
		Routes:    slices.Clone(t.Routes),
		Minutes:   t.Last().Time.Sub(t.First().Time),
	}
	for i, stop := range t.Stops {
		ts := TrainStop{Station: stop.Station, Time: stop.Time, Arrival: stop.Time.String()}
		if i > 0 {
			prev := t.Stops[i-1]
			ts.Distance = l.Distance(t.Direction, prev.Station, stop.Station)
			if m := stop.Time.Sub(prev.Time); m > 0 {
				ts.Speed = speed(ts.Distance, m)
			}
			d.Distance += ts.Distance
		}
		d.Stops = append(d.Stops, ts)
	}
	if tt, ok := s.ix.Through().Of(t); ok {
		d.Through = tt.Codes()
	}
	return d
}

// speed converts metres per minutes to km/h, rounded to 0.1
func speed(metres, minutes int) float64 {
	kmh := float64(metres) / float64(minutes) * 60 / 1000
	return math.Round(kmh*10) / 10
}

// RenderTrainDetail formats a train's run for display
func RenderTrainDetail(d *TrainDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s (%s)", d.Line, d.Direction, d.Code, d.DateGroup)
	if len(d.Routes) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(d.Routes, ", "))
	}
	b.WriteString("\n")
	first, last := d.Stops[0], d.Stops[len(d.Stops)-1]
	fmt.Fprintf(&b, "%s %s -> %s %s, %s, %.1f km",
		first.Station, first.Arrival, last.Station, last.Arrival,
		clock.FormatDuration(d.Minutes), float64(d.Distance)/1000)
	if d.Minutes > 0 {
		fmt.Fprintf(&b, ", avg %.1f km/h", speed(d.Distance, d.Minutes))
	}
	b.WriteString("\n")
	for i, st := range d.Stops {
		if i == 0 {
			fmt.Fprintf(&b, "  %-16s %s\n", st.Arrival, st.Station)
			continue
		}
		fmt.Fprintf(&b, "  %-16s %-16s %5.1f km %6.1f km/h\n", st.Arrival, st.Station, float64(st.Distance)/1000, st.Speed)
	}
	if len(d.Through) > 0 {
		fmt.Fprintf(&b, "Through service: %s\n", strings.Join(d.Through, " -> "))
	}
	return b.String()
}
