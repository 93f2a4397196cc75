package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

// TimetableRequest selects a station timetable
type TimetableRequest struct {
	Station       string
	Date          string
	Line          string
	Direction     string
	Destination   string
	Time          string // optional HH:MM; trains calling earlier are dropped
	Count         int    // cap per block when Time is set, 0 for no cap
	IncludeRoutes []string
	ExcludeRoutes []string
}

// StationTimetable lists the trains calling at a station on a date, one
// block per (line, direction, date group). Lines without service that day
// yield empty blocks marked NoService.
func (s *Service) StationTimetable(ctx context.Context, req TimetableRequest) ([]timetable.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if req.Count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative", ErrInput)
	}
	station, err := s.station(req.Station)
	if err != nil {
		return nil, err
	}

	f := timetable.StationFilter{
		Direction: req.Direction,
		Count:     req.Count,
		Routes:    timetable.RouteFilter{Include: req.IncludeRoutes, Exclude: req.ExcludeRoutes},
	}
	if req.Line != "" {
		if f.Line, err = s.line(req.Line); err != nil {
			return nil, err
		}
		if req.Direction != "" {
			if _, ok := s.city.Lines[f.Line].Directions[req.Direction]; !ok {
				return nil, fmt.Errorf("direction %q of %s: %w", req.Direction, f.Line, city.ErrNotFound)
			}
		}
	}
	if req.Destination != "" {
		if f.Destination, err = s.station(req.Destination); err != nil {
			return nil, err
		}
	}
	if req.Time != "" {
		at, err := parseTime(req.Time)
		if err != nil {
			return nil, err
		}
		f.After = &at
	}
	return s.ix.StationTimetable(station, date, f)
}

// RenderTimetable formats station timetable blocks for display
func RenderTimetable(station string, blocks []timetable.Block) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", station)
	for _, blk := range blocks {
		if blk.NoService {
			fmt.Fprintf(&b, "\n%s %s: no service\n", blk.Line, blk.Direction)
			continue
		}
		fmt.Fprintf(&b, "\n%s %s (%s), %d trains\n", blk.Line, blk.Direction, blk.DateGroup, len(blk.Entries))
		for _, e := range blk.Entries {
			var notes []string
			if e.Terminating {
				notes = append(notes, "terminates here")
			}
			if e.LastTrain {
				notes = append(notes, "last train")
			}
			line := fmt.Sprintf("  %-16s %-8s to %s", e.Time, e.Train.Code, e.Train.Terminus())
			if len(notes) > 0 {
				line += " [" + strings.Join(notes, ", ") + "]"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
