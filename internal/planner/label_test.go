package planner

import (
	"testing"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

func TestPushKeepsRideOnBesideBoarding(t *testing.T) {
	train := &city.Train{ID: 7, Code: "1EH012", Line: "Line 1", Direction: "East-bound"}
	s := &search{req: Request{K: 1}, kept: make(map[stateKey][]*label)}

	boarded := &label{kind: aboardLabel, station: "Mid", time: 480, train: train, pos: 2, boarded: true}
	rideOn := &label{kind: aboardLabel, station: "Mid", time: 480, inVehicle: 7, train: train, pos: 2}
	if boarded.key() == rideOn.key() {
		t.Fatal("expected boarding and riding on to use separate states")
	}

	s.push(boarded)
	s.push(rideOn)
	if len(s.pq) != 2 {
		t.Fatalf("expected the ride-on label to survive a better boarding label, got %d queued", len(s.pq))
	}

	// a second, no better ride-on label in the same state is still pruned
	s.push(&label{kind: aboardLabel, station: "Mid", time: 480, inVehicle: 9, train: train, pos: 2})
	if len(s.pq) != 2 {
		t.Errorf("expected the dominated ride-on label to be pruned, got %d queued", len(s.pq))
	}
}
