package handlers

import (
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/planner"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LinesResponse is the JSON response for GET /api/lines
type LinesResponse struct {
	Lines []string `json:"lines"`
	Count int      `json:"count"`
}

// StationsResponse is the JSON response for GET /api/stations
type StationsResponse struct {
	Line     string   `json:"line,omitempty"`
	Stations []string `json:"stations"`
	Count    int      `json:"count"`
}

// DirectionsResponse is the JSON response for GET /api/directions
type DirectionsResponse struct {
	Directions []query.DirectionInfo `json:"directions"`
}

// TransfersResponse is the JSON response for GET /api/transfers/{station}
type TransfersResponse struct {
	Station   string                 `json:"station"`
	Transfers []query.TransferMetric `json:"transfers"`
}

// TimetableResponse is the JSON response for GET /api/timetable/{station}
type TimetableResponse struct {
	Station string          `json:"station"`
	Date    string          `json:"date"`
	Blocks  []BlockResponse `json:"blocks"`
}

// BlockResponse lists the trains of one line, direction and date group
type BlockResponse struct {
	Line      string             `json:"line"`
	Direction string             `json:"direction"`
	DateGroup string             `json:"dateGroup"`
	NoService bool               `json:"noService,omitempty"`
	Trains    []DepartureResponse `json:"trains"`
}

// DepartureResponse is one train calling at the station
type DepartureResponse struct {
	Code        string   `json:"code"`
	Time        string   `json:"time"`
	Terminus    string   `json:"terminus"`
	Routes      []string `json:"routes,omitempty"`
	LastTrain   bool     `json:"lastTrain,omitempty"`
	Terminating bool     `json:"terminating,omitempty"`
}

// PlanResponse is the JSON response for GET /api/plan
type PlanResponse struct {
	RequestID   string            `json:"requestId"`
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	Date        string            `json:"date"`
	Depart      string            `json:"depart"`
	Strategy    string            `json:"strategy"`
	Journeys    []JourneyResponse `json:"journeys"`
	Cached      bool              `json:"cached"`
}

// JourneyResponse is one itinerary
type JourneyResponse struct {
	Depart           string            `json:"depart"`
	Arrive           string            `json:"arrive"`
	DurationMinutes  int               `json:"durationMinutes"`
	InVehicleMinutes int               `json:"inVehicleMinutes"`
	Transfers        int               `json:"transfers"`
	Fare             *float64          `json:"fare,omitempty"`
	Segments         []SegmentResponse `json:"segments"`
}

// Segment types
const (
	SegmentRide            = "ride"
	SegmentTransfer        = "transfer"
	SegmentVirtualTransfer = "virtual_transfer"
)

// SegmentResponse is a ride or a transfer
type SegmentResponse struct {
	Type          string   `json:"type"`
	Line          string   `json:"line,omitempty"`
	Direction     string   `json:"direction,omitempty"`
	Trains        []string `json:"trains,omitempty"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Depart        string   `json:"depart,omitempty"`
	Arrive        string   `json:"arrive,omitempty"`
	Minutes       int      `json:"minutes"`
	Through       []string `json:"through,omitempty"` // "line direction" of the continuing legs
	FromLine      string   `json:"fromLine,omitempty"`
	FromDirection string   `json:"fromDirection,omitempty"`
	ToLine        string   `json:"toLine,omitempty"`
	ToDirection   string   `json:"toDirection,omitempty"`
}

func newBlockResponses(blocks []timetable.Block) []BlockResponse {
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		br := BlockResponse{
			Line:      b.Line,
			Direction: b.Direction,
			DateGroup: b.DateGroup,
			NoService: b.NoService,
			Trains:    make([]DepartureResponse, 0, len(b.Entries)),
		}
		for _, e := range b.Entries {
			br.Trains = append(br.Trains, DepartureResponse{
				Code:        e.Train.Code,
				Time:        e.Time.String(),
				Terminus:    e.Train.Terminus(),
				Routes:      e.Train.Routes,
				LastTrain:   e.LastTrain,
				Terminating: e.Terminating,
			})
		}
		out = append(out, br)
	}
	return out
}

func newPlanResponse(res *query.PlanResult) *PlanResponse {
	resp := &PlanResponse{
		Origin:      res.Origin,
		Destination: res.Destination,
		Date:        res.Date,
		Depart:      res.Depart.String(),
		Strategy:    res.Strategy,
		Journeys:    make([]JourneyResponse, 0, len(res.Journeys)),
	}
	for _, pj := range res.Journeys {
		j := pj.Journey
		jr := JourneyResponse{
			Depart:           j.Depart.String(),
			Arrive:           j.Arrive.String(),
			DurationMinutes:  j.Duration(),
			InVehicleMinutes: j.InVehicle,
			Transfers:        j.Transfers,
			Segments:         make([]SegmentResponse, 0, len(j.Segments)),
		}
		if pj.HasFare {
			fare := pj.Fare
			jr.Fare = &fare
		}
		for _, seg := range j.Segments {
			if seg.Ride != nil {
				jr.Segments = append(jr.Segments, rideSegment(seg.Ride))
			} else {
				jr.Segments = append(jr.Segments, transferSegment(seg.Transfer))
			}
		}
		resp.Journeys = append(resp.Journeys, jr)
	}
	return resp
}

func rideSegment(r *planner.Ride) SegmentResponse {
	s := SegmentResponse{
		Type:      SegmentRide,
		Line:      r.Line,
		Direction: r.Direction,
		From:      r.Board.Station,
		To:        r.Alight.Station,
		Depart:    r.Board.Time.String(),
		Arrive:    r.Alight.Time.String(),
		Minutes:   r.Minutes(),
	}
	for _, t := range r.Trains {
		s.Trains = append(s.Trains, t.Code)
	}
	if r.Through() {
		for _, leg := range r.Legs()[1:] {
			s.Through = append(s.Through, leg.Train.Line+" "+leg.Train.Direction)
		}
	}
	return s
}

func transferSegment(x *planner.Transfer) SegmentResponse {
	s := SegmentResponse{
		Type:          SegmentTransfer,
		From:          x.Station,
		To:            x.ToStation,
		Minutes:       x.Minutes,
		FromLine:      x.FromLine,
		FromDirection: x.FromDirection,
		ToLine:        x.ToLine,
		ToDirection:   x.ToDirection,
	}
	if x.Virtual {
		s.Type = SegmentVirtualTransfer
	}
	return s
}
