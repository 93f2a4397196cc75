package handlers

import (
	"net/http"
	"time"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/metrics"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/query"
)

// HealthHandler reports whether the city is loaded and how queries perform
type HealthHandler struct {
	source  ServiceSource
	latency *metrics.Latency
	started time.Time
}

// NewHealthHandler creates a new handler
func NewHealthHandler(source ServiceSource, latency *metrics.Latency) *HealthHandler {
	return &HealthHandler{source: source, latency: latency, started: time.Now()}
}

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status        string            `json:"status"`
	City          *query.Stats      `json:"city,omitempty"`
	Latency       []metrics.Summary `json:"latency"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Error         string            `json:"error,omitempty"`
}

// GetHealth handles GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Latency:       []metrics.Summary{},
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC(),
	}
	if h.latency != nil {
		resp.Latency = h.latency.Snapshot()
	}

	svc, err := h.source.Get()
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	stats := svc.Stats()
	resp.City = &stats
	writeJSON(w, http.StatusOK, resp)
}
