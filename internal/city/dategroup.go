package city

import (
	"slices"
	"strings"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// DateGroup is a named calendar predicate (weekday, weekend, holiday, ...)
type DateGroup struct {
	Name         string
	Weekdays     []time.Weekday
	Dates        []string // explicitly included dates, YYYY-MM-DD
	ExcludeDates []string
	From         string // optional inclusive bounds, YYYY-MM-DD
	Until        string
}

// Covers reports whether the group applies on a date
func (g *DateGroup) Covers(date time.Time) bool {
	day := date.Format(clock.DateLayout)
	if slices.Contains(g.ExcludeDates, day) {
		return false
	}
	if slices.Contains(g.Dates, day) {
		return true
	}
	if g.From != "" && day < g.From {
		return false
	}
	if g.Until != "" && day > g.Until {
		return false
	}
	return slices.Contains(g.Weekdays, date.Weekday())
}

func (g *DateGroup) lists(date time.Time) bool {
	return slices.Contains(g.Dates, date.Format(clock.DateLayout))
}

// ParseWeekday parses a weekday name or its three-letter abbreviation, ignoring case
func ParseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := d.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return d, true
		}
	}
	return time.Sunday, false
}
