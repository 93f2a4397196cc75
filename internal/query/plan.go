package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/planner"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

// Planning strategies
const (
	MinTime     = "min_time"
	MinTransfer = "min_transfer"
)

const slowPlan = time.Second

// PlanRequest is a journey query. Strategy defaults to min_time and Time to
// the start of the service day.
type PlanRequest struct {
	Origin        string
	Destination   string
	Date          string
	Time          string
	Strategy      string
	K             int
	IncludeRoutes []string
	ExcludeRoutes []string
}

// PlannedJourney is a journey with its fare
type PlannedJourney struct {
	*planner.Journey
	Fare    float64
	HasFare bool
}

// PlanResult holds the journeys found for a request
type PlanResult struct {
	Origin      string
	Destination string
	Date        string
	Depart      clock.Clock
	Strategy    string
	Journeys    []PlannedJourney
}

// Validate checks the request format without resolving names
func (r *PlanRequest) Validate(maxK int) error {
	switch r.Strategy {
	case "":
		r.Strategy = MinTime
	case MinTime, MinTransfer:
	default:
		return fmt.Errorf("%w: unknown strategy %q (want %s or %s)", ErrInput, r.Strategy, MinTime, MinTransfer)
	}
	if r.K < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInput, r.K)
	}
	if maxK > 0 && r.K > maxK {
		return fmt.Errorf("%w: k must be at most %d, got %d", ErrInput, maxK, r.K)
	}
	if r.Origin == "" || r.Destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInput)
	}
	return nil
}

// PlanJourney plans up to k journeys (min_time) or the fewest-transfer
// journey (min_transfer). The service timeout bounds the search.
func (s *Service) PlanJourney(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := req.Validate(s.maxK); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	var depart clock.Clock
	if req.Time != "" {
		if depart, err = parseTime(req.Time); err != nil {
			return nil, err
		}
	}
	origin, err := s.station(req.Origin)
	if err != nil {
		return nil, err
	}
	dest, err := s.station(req.Destination)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	preq := planner.Request{
		Origin:      origin,
		Destination: dest,
		Date:        date,
		Depart:      depart,
		K:           req.K,
		Routes:      timetable.RouteFilter{Include: req.IncludeRoutes, Exclude: req.ExcludeRoutes},
	}
	start := time.Now()
	var journeys []*planner.Journey
	if req.Strategy == MinTransfer {
		var j *planner.Journey
		j, err = s.engine.FewestTransfers(ctx, preq)
		if err == nil {
			journeys = []*planner.Journey{j}
		}
	} else {
		journeys, err = s.engine.Plan(ctx, preq)
	}
	if elapsed := time.Since(start); elapsed > slowPlan {
		log.Printf("Slow plan query %s -> %s on %s (%s): %v", origin, dest, req.Date, req.Strategy, elapsed)
	}
	if err != nil {
		return nil, err
	}

	res := &PlanResult{
		Origin:      origin,
		Destination: dest,
		Date:        date.Format(clock.DateLayout),
		Depart:      depart,
		Strategy:    req.Strategy,
	}
	for _, j := range journeys {
		pj := PlannedJourney{Journey: j}
		if len(j.Rides()) > 0 {
			pj.Fare, pj.HasFare = s.city.Fare(j.FarePath(s.city), j.Depart)
		}
		res.Journeys = append(res.Journeys, pj)
	}
	return res, nil
}

// RenderPlan formats a plan result for display
func RenderPlan(res *PlanResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s, %s, departing %s (%s)\n", res.Origin, res.Destination, res.Date, res.Depart, res.Strategy)
	for i, pj := range res.Journeys {
		j := pj.Journey
		fmt.Fprintf(&b, "\nJourney %d: %s -> %s, %s, %s",
			i+1, j.Depart, j.Arrive, clock.FormatDuration(j.Duration()), plural(j.Transfers, "transfer"))
		if pj.HasFare {
			fmt.Fprintf(&b, ", fare %.2f", pj.Fare)
		}
		b.WriteString("\n")
		for _, seg := range j.Segments {
			if seg.Ride != nil {
				renderRide(&b, seg.Ride)
			} else {
				renderTransfer(&b, seg.Transfer)
			}
		}
	}
	return b.String()
}

func renderRide(b *strings.Builder, r *planner.Ride) {
	fmt.Fprintf(b, "  %s %s %s: %s %s -> %s %s (%s)",
		r.Line, r.Direction, r.Codes(),
		r.Board.Station, r.Board.Time, r.Alight.Station, r.Alight.Time,
		clock.FormatDuration(r.Minutes()))
	if r.Through() {
		var lines []string
		for _, leg := range r.Legs()[1:] {
			lines = append(lines, leg.Train.Line+" "+leg.Train.Direction)
		}
		fmt.Fprintf(b, ", through to %s", strings.Join(lines, ", "))
	}
	b.WriteString("\n")
}

func renderTransfer(b *strings.Builder, x *planner.Transfer) {
	if x.Virtual {
		fmt.Fprintf(b, "  Virtual Transfer: %s -> %s, %s", x.Station, x.ToStation, plural(x.Minutes, "minute"))
	} else {
		fmt.Fprintf(b, "  Transfer at %s, %s", x.Station, plural(x.Minutes, "minute"))
	}
	if x.FromLine != "" || x.ToLine != "" {
		fmt.Fprintf(b, " (%s -> %s)", lineDir(x.FromLine, x.FromDirection), lineDir(x.ToLine, x.ToDirection))
	}
	b.WriteString("\n")
}

func lineDir(line, dir string) string {
	switch {
	case line == "":
		return "street"
	case dir == "":
		return line
	}
	return line + " " + dir
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
