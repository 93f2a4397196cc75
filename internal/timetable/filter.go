package timetable

import (
	"slices"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// RouteFilter selects trains by route tag. A non-empty Include list accepts a
// train iff any of its tags is included; otherwise a train is accepted iff
// none of its tags is excluded.
type RouteFilter struct {
	Include []string
	Exclude []string
}

// Accepts reports whether a train passes the filter
func (f RouteFilter) Accepts(t *city.Train) bool {
	if len(f.Include) > 0 {
		for _, tag := range t.Routes {
			if slices.Contains(f.Include, tag) {
				return true
			}
		}
		return false
	}
	for _, tag := range t.Routes {
		if slices.Contains(f.Exclude, tag) {
			return false
		}
	}
	return true
}

// IsZero reports whether the filter accepts every train
func (f RouteFilter) IsZero() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}
