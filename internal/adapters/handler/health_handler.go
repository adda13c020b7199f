package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the backing datastore is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
// OpenShift compatible: /health, /health/ready, /health/live
type HealthHandler struct {
	store  Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		store:  store,
		logger: logger.With(zap.String("component", "health")),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *HealthHandler) write(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(HealthResponse{Status: state, Timestamp: time.Now().UTC()}); err != nil {
		h.logger.Warn("failed to encode health response", zap.Error(err))
	}
}

// Health handles GET /health - general health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, "ok")
}

// Ready handles GET /health/ready - readiness probe
// Checks datastore connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			h.write(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}

	h.write(w, http.StatusOK, "ready")
}

// Live handles GET /health/live - liveness probe
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, "alive")
}

// Metrics handles GET /metrics - Prometheus metrics endpoint
func Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
