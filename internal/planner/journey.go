package planner

import (
	"fmt"
	"strings"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
)

// Ride is one continuous stay aboard, possibly spanning several trains of a
// through-running service
type Ride struct {
	Line        string
	Direction   string
	Trains      []*city.Train
	Board       city.Stop
	Alight      city.Stop
	BoardIndex  int // into Trains[0].Stops
	AlightIndex int // into Trains[len(Trains)-1].Stops
}

// Minutes returns the time spent aboard
func (r *Ride) Minutes() int {
	return r.Alight.Time.Sub(r.Board.Time)
}

// Through reports whether the ride continues across a line boundary
func (r *Ride) Through() bool { return len(r.Trains) > 1 }

// Leg is the part of a ride on a single train
type Leg struct {
	Train    *city.Train
	From, To int // stop indices
}

// Legs splits the ride per train
func (r *Ride) Legs() []Leg {
	legs := make([]Leg, len(r.Trains))
	for i, t := range r.Trains {
		from, to := 0, len(t.Stops)-1
		if i == 0 {
			from = r.BoardIndex
		}
		if i == len(r.Trains)-1 {
			to = r.AlightIndex
		}
		legs[i] = Leg{Train: t, From: from, To: to}
	}
	return legs
}

// Codes returns the train codes joined by "/"
func (r *Ride) Codes() string {
	codes := make([]string, len(r.Trains))
	for i, t := range r.Trains {
		codes[i] = t.Code
	}
	return strings.Join(codes, "/")
}

// Transfer is a change between rides, in-station or walking to a paired
// station. Walks from the origin or to the destination have no line on
// that side.
type Transfer struct {
	Station       string
	ToStation     string
	FromLine      string
	FromDirection string
	ToLine        string
	ToDirection   string
	Minutes       int
	Virtual       bool
}

// Segment is either a ride or a transfer
type Segment struct {
	Ride     *Ride
	Transfer *Transfer
}

// Journey is a complete itinerary
type Journey struct {
	Origin      string
	Destination string
	Segments    []Segment
	Depart      clock.Clock
	Arrive      clock.Clock
	Transfers   int
	InVehicle   int
}

// Duration returns the minutes from departure to arrival
func (j *Journey) Duration() int {
	return j.Arrive.Sub(j.Depart)
}

// Rides returns the ride segments in order
func (j *Journey) Rides() []*Ride {
	var rides []*Ride
	for _, s := range j.Segments {
		if s.Ride != nil {
			rides = append(rides, s.Ride)
		}
	}
	return rides
}

// Signature identifies a journey by its (train, board, alight) sequence
func (j *Journey) Signature() string {
	var b strings.Builder
	for _, s := range j.Segments {
		switch {
		case s.Ride != nil:
			fmt.Fprintf(&b, "%s:%s@%d>%s;", s.Ride.Codes(), s.Ride.Board.Station, s.Ride.BoardIndex, s.Ride.Alight.Station)
		case s.Transfer != nil && s.Transfer.Virtual:
			fmt.Fprintf(&b, "walk:%s>%s;", s.Transfer.Station, s.Transfer.ToStation)
		}
	}
	return b.String()
}

// FarePath summarizes the journey for fare rules
func (j *Journey) FarePath(c *city.City) city.FarePath {
	var p city.FarePath
	for _, r := range j.Rides() {
		for _, leg := range r.Legs() {
			t := leg.Train
			if len(p.Lines) == 0 || p.Lines[len(p.Lines)-1] != t.Line {
				p.Lines = append(p.Lines, t.Line)
			}
			from, to := t.Stops[leg.From].Station, t.Stops[leg.To].Station
			p.Distance += c.Lines[t.Line].Distance(t.Direction, from, to)
			if len(p.Stations) == 0 || p.Stations[len(p.Stations)-1] != from {
				p.Stations = append(p.Stations, from)
			}
			p.Stations = append(p.Stations, to)
		}
	}
	return p
}
