// Package clock provides service-day clock arithmetic for timetable data.
//
// A Clock is a wall-clock time plus a day offset, so that runs crossing
// midnight keep sorting after the evening trains of the same service day
// (25:37 is stored as 01:37 with Day 1).
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the length of one service day in minutes
const MinutesPerDay = 24 * 60

// DateLayout is the accepted date format for queries
const DateLayout = "2006-01-02"

// ErrParse is returned for malformed times and dates
var ErrParse = errors.New("parse error")

// Clock is a time of day on a service day
type Clock struct {
	Hour   int
	Minute int
	Day    int // 0 = service date, 1 = next calendar day, ...
}

// New builds a normalized Clock, carrying overflowing hours into Day
func New(hour, minute, day int) Clock {
	return FromAbsolute(day*MinutesPerDay + hour*60 + minute)
}

// FromAbsolute converts minutes since service-day midnight into a Clock
func FromAbsolute(minutes int) Clock {
	if minutes < 0 {
		minutes = 0
	}
	return Clock{
		Hour:   (minutes % MinutesPerDay) / 60,
		Minute: minutes % 60,
		Day:    minutes / MinutesPerDay,
	}
}

// Absolute returns minutes since midnight of the service date
func (c Clock) Absolute() int {
	return c.Day*MinutesPerDay + c.Hour*60 + c.Minute
}

// Add returns c shifted by the given number of minutes
func (c Clock) Add(minutes int) Clock {
	return FromAbsolute(c.Absolute() + minutes)
}

// Sub returns c - other in minutes
func (c Clock) Sub(other Clock) int {
	return c.Absolute() - other.Absolute()
}

// Compare returns -1, 0 or +1
func (c Clock) Compare(other Clock) int {
	a, b := c.Absolute(), other.Absolute()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (c Clock) Before(other Clock) bool { return c.Absolute() < other.Absolute() }

func (c Clock) After(other Clock) bool { return c.Absolute() > other.Absolute() }

// HHMM formats the wall-clock part only
func (c Clock) HHMM() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// String formats the clock for display: "HH:MM", "next-day HH:MM", or "HH:MM (+N)"
func (c Clock) String() string {
	switch {
	case c.Day <= 0:
		return c.HHMM()
	case c.Day == 1:
		return "next-day " + c.HHMM()
	default:
		return fmt.Sprintf("%s (+%d)", c.HHMM(), c.Day)
	}
}

// ScheduleString formats the clock the way timetable files store it ("25:37")
func (c Clock) ScheduleString() string {
	return fmt.Sprintf("%02d:%02d", c.Day*24+c.Hour, c.Minute)
}

// Parse parses a query time "HH:MM" (00:00 - 23:59)
func Parse(s string) (Clock, error) {
	h, m, err := splitHHMM(s)
	if err != nil {
		return Clock{}, err
	}
	if h > 23 {
		return Clock{}, fmt.Errorf("%w: hour out of range in %q", ErrParse, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// ParseSchedule parses timetable times: "HH:MM" with hours up to 47, or "HH:MM+N"
func ParseSchedule(s string) (Clock, error) {
	day := 0
	if i := strings.IndexByte(s, '+'); i >= 0 {
		d, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
		if err != nil || d < 0 {
			return Clock{}, fmt.Errorf("%w: bad day offset in %q", ErrParse, s)
		}
		day = d
		s = s[:i]
	}
	h, m, err := splitHHMM(s)
	if err != nil {
		return Clock{}, err
	}
	if h > 47 {
		return Clock{}, fmt.Errorf("%w: hour out of range in %q", ErrParse, s)
	}
	return New(h, m, day), nil
}

func splitHHMM(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrParse, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, 0, fmt.Errorf("%w: bad hour in %q", ErrParse, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute in %q", ErrParse, s)
	}
	return h, m, nil
}

// ParseDate parses a query date "YYYY-MM-DD"
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: expected YYYY-MM-DD, got %q", ErrParse, s)
	}
	return d, nil
}

// FormatDuration renders a minute count as "1h05m" or "42 min"
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}
