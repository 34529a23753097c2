package api

import (
	"context"
	"net/http"
	"time"

	"userservice/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type statsProvider interface {
	GetStats() map[string]interface{}
}

type HealthHandler struct {
	checks map[string]Pinger
	logger logger.Logger
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler probes each named dependency. Nil entries are skipped.
func NewHealthHandler(checks map[string]Pinger, logger logger.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{
		checks: active,
		logger: logger,
	}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	services := make(map[string]interface{}, len(h.checks))

	for name, p := range h.checks {
		result := map[string]interface{}{"status": "healthy"}
		if err := p.Ping(ctx); err != nil {
			result["status"] = "unhealthy"
			result["error"] = err.Error()
			status = "degraded"
			h.logger.WarnContext(ctx, "Health check failed", map[string]interface{}{"service": name, "error": err.Error()})
		}
		if sp, ok := p.(statsProvider); ok {
			result["stats"] = sp.GetStats()
		}
		services[name] = result
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
	})
}
