package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/citytest"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/metrics"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
)

type failingSource struct{ err error }

func (f failingSource) Get() (*query.Service, error) { return nil, f.err }

func demoSource() ServiceSource {
	return query.NewLazy(func() (*query.Service, error) {
		return query.NewService(citytest.MustDemo(), query.Options{MaxK: 5})
	})
}

func newRouter(source ServiceSource, ttl time.Duration) (*chi.Mux, *metrics.Latency) {
	latency := metrics.NewLatency()
	r := chi.NewRouter()
	NewPlannerHandler(source, ttl, latency).Routes(r)
	r.Get("/health", NewHealthHandler(source, latency).GetHealth)
	return r, latency
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

const plan = "/api/plan?date=2024-06-01&time=08:00"

func TestStatusCodes(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"lines", "/api/lines", http.StatusOK},
		{"stations of a line", "/api/stations?line=Line%201", http.StatusOK},
		{"unknown line", "/api/stations?line=Nope", http.StatusNotFound},
		{"directions", "/api/directions?line=Line%201&from=Alpha&to=Mid", http.StatusOK},
		{"directions without destination", "/api/directions?line=Line%201&from=Alpha", http.StatusBadRequest},
		{"transfers", "/api/transfers/Mid", http.StatusOK},
		{"transfers of an unknown station", "/api/transfers/Atlantis", http.StatusNotFound},
		{"timetable", "/api/timetable/Mid?date=2024-06-01", http.StatusOK},
		{"timetable bad date", "/api/timetable/Mid?date=June", http.StatusBadRequest},
		{"timetable bad count", "/api/timetable/Mid?date=2024-06-01&time=08:00&count=many", http.StatusBadRequest},
		{"train by code", "/api/trains/Line%201?date=2024-06-01&code=1EH013", http.StatusOK},
		{"ambiguous train", "/api/trains/Circle%20Line?date=2024-06-01&station=Beta&time=08:00", http.StatusConflict},
		{"plan", plan + "&from=Alpha&to=Zeta", http.StatusOK},
		{"unreachable", plan + "&from=Alpha&to=Isle-North", http.StatusUnprocessableEntity},
		{"same station", plan + "&from=Alpha&to=Alpha", http.StatusBadRequest},
		{"k above limit", plan + "&from=Alpha&to=Zeta&k=99", http.StatusBadRequest},
		{"k not a number", plan + "&from=Alpha&to=Zeta&k=two", http.StatusBadRequest},
		{"unknown strategy", plan + "&from=Alpha&to=Zeta&strategy=scenic", http.StatusBadRequest},
		{"unknown station", plan + "&from=Alpha&to=Atlantis", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("unexpected content type %q", ct)
			}
		})
	}
}

func TestErrorBody(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	var resp ErrorResponse
	decode(t, get(t, r, plan+"&from=Alpha&to=Isle-North"), &resp)
	if resp.Error != "Unreachable" {
		t.Errorf("expected Unreachable, got %q", resp.Error)
	}
	if resp.Details["to"] != "Isle-North" {
		t.Errorf("expected request details, got %v", resp.Details)
	}

	decode(t, get(t, r, plan+"&from=Alpha&to=Zeta&k=0"), &resp)
	if !strings.HasPrefix(resp.Error, "Error: ") {
		t.Errorf("expected an error message, got %q", resp.Error)
	}
}

func TestGetPlan(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	rec := get(t, r, plan+"&from=Alpha&to=Zeta")
	var resp PlanResponse
	decode(t, rec, &resp)

	if _, err := uuid.Parse(resp.RequestID); err != nil {
		t.Errorf("request id %q is not a uuid", resp.RequestID)
	}
	if rec.Header().Get("X-Request-ID") != resp.RequestID {
		t.Error("request id header does not match the body")
	}
	if resp.Cached {
		t.Error("first response should not be cached")
	}
	if resp.Origin != "Alpha" || resp.Destination != "Zeta" || resp.Strategy != query.MinTime {
		t.Errorf("unexpected plan header %+v", resp)
	}
	if len(resp.Journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(resp.Journeys))
	}
	j := resp.Journeys[0]
	if j.Depart != "08:00" || j.Arrive != "08:21" || j.Transfers != 1 || j.DurationMinutes != 21 {
		t.Errorf("unexpected journey %+v", j)
	}
	if j.Fare == nil || *j.Fare != 3 {
		t.Errorf("expected fare 3, got %v", j.Fare)
	}
	if len(j.Segments) != 3 {
		t.Fatalf("expected ride, transfer, ride; got %+v", j.Segments)
	}
	ride, transfer := j.Segments[0], j.Segments[1]
	if ride.Type != SegmentRide || ride.Line != "Line 1" || ride.From != "Alpha" || ride.To != "Mid" {
		t.Errorf("unexpected first ride %+v", ride)
	}
	if transfer.Type != SegmentTransfer || transfer.From != "Mid" || transfer.Minutes != 4 ||
		transfer.FromDirection != "East-bound" || transfer.ToDirection != "South-bound" {
		t.Errorf("unexpected transfer %+v", transfer)
	}
	if last := j.Segments[2]; last.Arrive != "08:21" || last.To != "Zeta" {
		t.Errorf("unexpected last ride %+v", last)
	}

	// the repeat comes from the cache under a new request id
	var again PlanResponse
	decode(t, get(t, r, plan+"&from=Alpha&to=Zeta"), &again)
	if !again.Cached {
		t.Error("repeat should be served from the cache")
	}
	if again.RequestID == resp.RequestID {
		t.Error("request ids should differ")
	}
	if again.Journeys[0].Arrive != "08:21" {
		t.Errorf("cached journey differs: %+v", again.Journeys[0])
	}
}

func TestGetPlanSegments(t *testing.T) {
	r, _ := newRouter(demoSource(), 0)

	var through PlanResponse
	decode(t, get(t, r, plan+"&from=Zeta&to=Harbor"), &through)
	seg := through.Journeys[0].Segments[0]
	if len(seg.Trains) != 2 || seg.Trains[0] != "2SH011" || seg.Trains[1] != "5SH011" {
		t.Errorf("expected the through run 2SH011/5SH011, got %v", seg.Trains)
	}
	if len(seg.Through) != 1 || seg.Through[0] != "Line 5 Seaward" {
		t.Errorf("unexpected through legs %v", seg.Through)
	}

	var walk PlanResponse
	decode(t, get(t, r, plan+"&from=East-Gate&to=West-Plaza"), &walk)
	j := walk.Journeys[0]
	if len(j.Segments) != 1 || j.Segments[0].Type != SegmentVirtualTransfer || j.Segments[0].Minutes != 6 {
		t.Errorf("expected a single 6 minute walk, got %+v", j.Segments)
	}
	if j.Fare != nil {
		t.Errorf("a walk has no fare, got %v", *j.Fare)
	}

	var again PlanResponse
	decode(t, get(t, r, plan+"&from=East-Gate&to=West-Plaza"), &again)
	if again.Cached {
		t.Error("nothing is cached with a zero ttl")
	}
}

func TestGetPlanOptions(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	var resp PlanResponse
	decode(t, get(t, r, "/api/plan?from=Alpha&to=Mid&date=2024-06-01&time=08:01&k=3&exclude=Express"), &resp)
	if len(resp.Journeys) != 3 {
		t.Fatalf("expected 3 journeys, got %d", len(resp.Journeys))
	}
	for _, j := range resp.Journeys {
		for _, s := range j.Segments {
			for _, code := range s.Trains {
				if strings.HasPrefix(code, "1XH") {
					t.Errorf("excluded express %s boarded", code)
				}
			}
		}
	}

	decode(t, get(t, r, plan+"&from=Alpha&to=Zeta&strategy=min_transfer"), &resp)
	if resp.Strategy != query.MinTransfer || len(resp.Journeys) != 1 || resp.Journeys[0].Transfers != 1 {
		t.Errorf("unexpected fewest-transfer plan %+v", resp)
	}
}

func TestTextFormat(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"plan", plan + "&from=Alpha&to=Zeta&format=text", "Journey 1: 08:00 -> 08:21"},
		{"train", "/api/trains/Line%201?date=2024-06-01&code=1EH013&format=text", "Line 1 East-bound 1EH013 (Weekend)"},
		{"timetable", "/api/timetable/Mid?date=2024-06-01&line=Line%201&direction=East-bound&format=text", "1EH013"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
				t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("expected %q in:\n%s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetTimetable(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	var resp TimetableResponse
	decode(t, get(t, r, "/api/timetable/Mid?date=2024-06-01&line=Line%201&direction=East-bound&time=23:50&count=5"), &resp)
	if len(resp.Blocks) != 1 {
		t.Fatalf("expected one block, got %+v", resp.Blocks)
	}
	b := resp.Blocks[0]
	if b.Line != "Line 1" || b.DateGroup != "Weekend" || len(b.Trains) == 0 {
		t.Fatalf("unexpected block %+v", b)
	}
	last := b.Trains[len(b.Trains)-1]
	if last.Code != "1EH108" || !last.LastTrain || last.Terminus != "East-Gate" {
		t.Errorf("expected 1EH108 as the last train, got %+v", last)
	}
}

func TestGetTrain(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	var detail query.TrainDetail
	decode(t, get(t, r, "/api/trains/Line%202?date=2024-06-01&code=2SH011"), &detail)
	if detail.Code != "2SH011" || len(detail.Through) != 2 {
		t.Errorf("unexpected train detail %+v", detail)
	}
}

func TestConcurrentPlans(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)

	var wg sync.WaitGroup
	arrivals := make([]string, 16)
	codes := make([]int, 16)
	for i := range arrivals {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, plan+"&from=Gamma&to=Delta", nil))
			codes[i] = rec.Code
			var resp PlanResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err == nil && len(resp.Journeys) > 0 {
				arrivals[i] = resp.Journeys[0].Arrive
			}
		}(i)
	}
	wg.Wait()
	for i := range arrivals {
		if codes[i] != http.StatusOK || arrivals[i] != "08:18" {
			t.Errorf("request %d: status %d, arrival %q", i, codes[i], arrivals[i])
		}
	}
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(demoSource(), time.Minute)
	get(t, r, plan+"&from=Alpha&to=Zeta")

	rec := get(t, r, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "healthy" || resp.City == nil || resp.City.Lines != 7 || resp.City.Stations != 19 {
		t.Errorf("unexpected health %+v", resp)
	}
	found := false
	for _, s := range resp.Latency {
		if s.Operation == "plan" && s.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected one plan in the latency stats, got %+v", resp.Latency)
	}
}

func TestUnavailableCity(t *testing.T) {
	r, _ := newRouter(failingSource{errors.New("no such file")}, time.Minute)

	for _, target := range []string{"/health", "/api/lines", plan + "&from=Alpha&to=Zeta"} {
		rec := get(t, r, target)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", target, rec.Code)
		}
	}
}

func TestListParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/plan?exclude=Express,%20Night&exclude=Airport&exclude=", nil)
	got := listParam(req, "exclude")
	want := []string{"Express", "Night", "Airport"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, got)
	}
	if listParam(req, "include") != nil {
		t.Error("expected no include routes")
	}
}
