package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"edupulse/internal/services"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	service *services.AnalyticsService
	started time.Time
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.AnalyticsService, version string) *HealthHandler {
	return &HealthHandler{
		service: service,
		started: time.Now(),
		version: version,
	}
}

// Routes returns the health route tree
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetHealth)
	r.Get("/ready", h.GetReadiness)
	return r
}

type healthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Uptime  string              `json:"uptime"`
	Data    services.DataStatus `json:"data"`
}

// GetHealth reports process liveness
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status:  "healthy",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Data:    h.service.Status(),
	})
}

// GetReadiness reports whether the service can answer analytics requests.
// Readiness requires a loaded data set.
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()
	if !status.Loaded() {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, healthResponse{
			Status:  "waiting for data",
			Version: h.version,
			Uptime:  time.Since(h.started).Round(time.Second).String(),
			Data:    status,
		})
		return
	}

	render.JSON(w, r, healthResponse{
		Status:  "ready",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Data:    status,
	})
}
