package city

import (
	"math"
	"slices"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// ThroughSegment is one (line, direction, date group) leg of a through service
type ThroughSegment struct {
	Line      string
	Direction string
	DateGroup string
}

// ThroughSpec declares that trains continue from one line onto the next
// without a transfer at the junction
type ThroughSpec struct {
	Name       string
	Segments   []ThroughSegment
	MaxLayover int        // minutes allowed between arrival and continuation
	Trains     [][]string // optional explicit train codes, one list per through train
}

// FarePath summarizes a journey for fare calculation
type FarePath struct {
	Lines    []string
	Stations []string
	Distance int // metres ridden
}

// FareRule computes a fare for a path entered at a given time
type FareRule interface {
	Name() string
	Fare(p FarePath, entry clock.Clock) (float64, bool)
}

// Fare returns the first applicable fare
func (c *City) Fare(p FarePath, entry clock.Clock) (float64, bool) {
	for _, r := range c.FareRules {
		if f, ok := r.Fare(p, entry); ok {
			return f, true
		}
	}
	return 0, false
}

// FareTier prices every ride up to a distance
type FareTier struct {
	UpTo  int // metres, inclusive
	Price float64
}

// DistanceFare is a tiered distance fare. Beyond the last tier every started
// ExtraEvery metres add ExtraPrice. Entering before DiscountBefore applies
// DiscountRate (0.1 = 10% off).
type DistanceFare struct {
	Tiers          []FareTier
	ExtraEvery     int
	ExtraPrice     float64
	DiscountBefore *clock.Clock
	DiscountRate   float64
	ExcludedLines  []string
}

func (f *DistanceFare) Name() string { return "distance" }

func (f *DistanceFare) Fare(p FarePath, entry clock.Clock) (float64, bool) {
	if len(f.Tiers) == 0 {
		return 0, false
	}
	for _, l := range p.Lines {
		if slices.Contains(f.ExcludedLines, l) {
			return 0, false
		}
	}
	price := -1.0
	for _, tier := range f.Tiers {
		if p.Distance <= tier.UpTo {
			price = tier.Price
			break
		}
	}
	if price < 0 {
		last := f.Tiers[len(f.Tiers)-1]
		price = last.Price
		if f.ExtraEvery > 0 {
			over := p.Distance - last.UpTo
			steps := (over + f.ExtraEvery - 1) / f.ExtraEvery
			price += float64(steps) * f.ExtraPrice
		}
	}
	if f.DiscountBefore != nil && entry.Before(*f.DiscountBefore) && f.DiscountRate > 0 {
		price = math.Round(price*(1-f.DiscountRate)*100) / 100
	}
	return price, true
}

// FlatLineFare charges a fixed price when the path stays on the listed lines
type FlatLineFare struct {
	Lines []string
	Price float64
}

func (f *FlatLineFare) Name() string { return "flat" }

func (f *FlatLineFare) Fare(p FarePath, _ clock.Clock) (float64, bool) {
	if len(p.Lines) == 0 {
		return 0, false
	}
	for _, l := range p.Lines {
		if !slices.Contains(f.Lines, l) {
			return 0, false
		}
	}
	return f.Price, true
}
