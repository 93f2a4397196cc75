package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/metrics"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/planner"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
)

// ServiceSource provides the query service, building it on first use
type ServiceSource interface {
	Get() (*query.Service, error)
}

// PlannerHandler handles HTTP requests for timetable and journey queries
type PlannerHandler struct {
	source  ServiceSource
	plans   *cache.Cache
	group   singleflight.Group
	latency *metrics.Latency
}

// NewPlannerHandler creates a handler. Plan results are cached for cacheTTL;
// a zero TTL disables the cache.
func NewPlannerHandler(source ServiceSource, cacheTTL time.Duration, latency *metrics.Latency) *PlannerHandler {
	if latency == nil {
		latency = metrics.NewLatency()
	}
	h := &PlannerHandler{source: source, latency: latency}
	if cacheTTL > 0 {
		h.plans = cache.New(cacheTTL, 2*cacheTTL)
	}
	return h
}

// Routes mounts the planner endpoints
func (h *PlannerHandler) Routes(r chi.Router) {
	r.Get("/api/lines", h.GetLines)
	r.Get("/api/stations", h.GetStations)
	r.Get("/api/directions", h.GetDirections)
	r.Get("/api/transfers/{station}", h.GetTransfers)
	r.Get("/api/timetable/{station}", h.GetTimetable)
	r.Get("/api/trains/{line}", h.GetTrain)
	r.Get("/api/plan", h.GetPlan)
}

// GetLines handles GET /api/lines
func (h *PlannerHandler) GetLines(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	start := time.Now()
	lines := svc.ListLines()
	h.latency.Since("lines", start, nil)
	writeJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

// GetStations handles GET /api/stations
// Lists the stations of ?line=, or every station without it
func (h *PlannerHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	start := time.Now()
	line := r.URL.Query().Get("line")
	stations, err := svc.ListStations(line)
	h.latency.Since("stations", start, err)
	if err != nil {
		writeError(w, err, map[string]interface{}{"line": line})
		return
	}
	writeJSON(w, http.StatusOK, StationsResponse{Line: line, Stations: stations, Count: len(stations)})
}

// GetDirections handles GET /api/directions?line=&from=&to=
func (h *PlannerHandler) GetDirections(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	start := time.Now()
	q := r.URL.Query()
	dirs, err := svc.ListDirections(q.Get("line"), q.Get("from"), q.Get("to"))
	h.latency.Since("directions", start, err)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, DirectionsResponse{Directions: dirs})
}

// GetTransfers handles GET /api/transfers/{station}?from_line=&to_line=
func (h *PlannerHandler) GetTransfers(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	start := time.Now()
	station := chi.URLParam(r, "station")
	q := r.URL.Query()
	transfers, err := svc.TransferMetrics(station, q.Get("from_line"), q.Get("to_line"))
	h.latency.Since("transfers", start, err)
	if err != nil {
		writeError(w, err, map[string]interface{}{"station": station})
		return
	}
	writeJSON(w, http.StatusOK, TransfersResponse{Station: station, Transfers: transfers})
}

// GetTimetable handles GET /api/timetable/{station}
// Query parameters: date (required), line, direction, destination, time,
// count, include, exclude, format=text
func (h *PlannerHandler) GetTimetable(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := query.TimetableRequest{
		Station:       chi.URLParam(r, "station"),
		Date:          q.Get("date"),
		Line:          q.Get("line"),
		Direction:     q.Get("direction"),
		Destination:   q.Get("destination"),
		Time:          q.Get("time"),
		IncludeRoutes: listParam(r, "include"),
		ExcludeRoutes: listParam(r, "exclude"),
	}
	var err error
	if req.Count, err = intParam(r, "count", 0); err != nil {
		writeError(w, err, nil)
		return
	}

	start := time.Now()
	blocks, err := svc.StationTimetable(r.Context(), req)
	h.latency.Since("timetable", start, err)
	if err != nil {
		writeError(w, err, map[string]interface{}{"station": req.Station, "date": req.Date})
		return
	}
	if q.Get("format") == "text" {
		writeText(w, query.RenderTimetable(req.Station, blocks))
		return
	}
	writeJSON(w, http.StatusOK, TimetableResponse{Station: req.Station, Date: req.Date, Blocks: newBlockResponses(blocks)})
}

// GetTrain handles GET /api/trains/{line}
// Selects a train by ?code=, or by ?station= and ?time= (nearest call)
func (h *PlannerHandler) GetTrain(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := query.TrainRequest{
		Line:      chi.URLParam(r, "line"),
		Date:      q.Get("date"),
		Code:      q.Get("code"),
		Station:   q.Get("station"),
		Time:      q.Get("time"),
		Direction: q.Get("direction"),
	}
	start := time.Now()
	detail, err := svc.TrainDetail(req)
	h.latency.Since("train", start, err)
	if err != nil {
		writeError(w, err, map[string]interface{}{"line": req.Line})
		return
	}
	if q.Get("format") == "text" {
		writeText(w, query.RenderTrainDetail(detail))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetPlan handles GET /api/plan?from=&to=&date=&time=&strategy=&k=
// Identical requests share one search, and results are cached.
func (h *PlannerHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := query.PlanRequest{
		Origin:        q.Get("from"),
		Destination:   q.Get("to"),
		Date:          q.Get("date"),
		Time:          q.Get("time"),
		Strategy:      q.Get("strategy"),
		IncludeRoutes: listParam(r, "include"),
		ExcludeRoutes: listParam(r, "exclude"),
	}
	var err error
	if req.K, err = intParam(r, "k", 1); err != nil {
		writeError(w, err, nil)
		return
	}

	key := planKey(req)
	text := q.Get("format") == "text"
	if cached, found := h.cached(key); found {
		h.writePlan(w, cached, true, text)
		return
	}

	start := time.Now()
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		// the search outlives a caller that disconnects; the service timeout bounds it
		res, err := svc.PlanJourney(context.WithoutCancel(r.Context()), req)
		if err != nil {
			return nil, err
		}
		entry := &planEntry{resp: newPlanResponse(res), text: query.RenderPlan(res)}
		if h.plans != nil {
			h.plans.SetDefault(key, entry)
		}
		return entry, nil
	})
	h.latency.Since("plan", start, err)
	if err != nil {
		if !errors.Is(err, query.ErrInput) && !errors.Is(err, city.ErrNotFound) && !errors.Is(err, planner.ErrUnreachable) {
			log.Printf("Plan %s -> %s failed: %v", req.Origin, req.Destination, err)
		}
		writeError(w, err, map[string]interface{}{"from": req.Origin, "to": req.Destination})
		return
	}
	h.writePlan(w, v.(*planEntry), false, text)
}

// planEntry is a computed plan in both output forms
type planEntry struct {
	resp *PlanResponse
	text string
}

func (h *PlannerHandler) cached(key string) (*planEntry, bool) {
	if h.plans == nil {
		return nil, false
	}
	v, found := h.plans.Get(key)
	if !found {
		return nil, false
	}
	return v.(*planEntry), true
}

func (h *PlannerHandler) writePlan(w http.ResponseWriter, e *planEntry, cached, text bool) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)
	if text {
		writeText(w, e.text)
		return
	}
	resp := *e.resp
	resp.RequestID = requestID
	resp.Cached = cached
	writeJSON(w, http.StatusOK, resp)
}

// planKey identifies a plan request in the cache and the flight group
func planKey(req query.PlanRequest) string {
	return strings.Join([]string{
		req.Origin, req.Destination, req.Date, req.Time, req.Strategy, strconv.Itoa(req.K),
		strings.Join(req.IncludeRoutes, ","), strings.Join(req.ExcludeRoutes, ","),
	}, "|")
}

func (h *PlannerHandler) service(w http.ResponseWriter) (*query.Service, bool) {
	svc, err := h.source.Get()
	if err != nil {
		log.Printf("City data unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "City data unavailable",
			Details: map[string]interface{}{
				"message": err.Error(),
			},
		})
		return nil, false
	}
	return svc, true
}

// statusFor maps query errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, query.ErrInput), errors.Is(err, planner.ErrSameStation):
		return http.StatusBadRequest
	case errors.Is(err, city.ErrNotFound), errors.Is(err, city.ErrNoService):
		return http.StatusNotFound
	case errors.Is(err, query.ErrAmbiguous):
		return http.StatusConflict
	case errors.Is(err, planner.ErrUnreachable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, planner.ErrCancelled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["message"] = err.Error()
	writeJSON(w, statusFor(err), ErrorResponse{
		Error:   query.UserMessage(err),
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, text)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", query.ErrInput, name, raw)
	}
	return n, nil
}

// listParam accepts repeated and comma separated values
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
