package api

import (
	"net/http"

	"userservice/internal/api/middleware"
	"userservice/internal/domain"
	"userservice/pkg/logger"
	"userservice/pkg/metrics"
)

type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// NewRouter mounts the user API, health and metrics endpoints plus any
// extra handlers behind the tracing, logging and metrics middleware.
func NewRouter(service domain.UserService, checks map[string]Pinger, log logger.Logger, extra ...RouteRegistrar) http.Handler {
	mux := http.NewServeMux()

	NewUserHandler(service, log).RegisterRoutes(mux)
	NewHealthHandler(checks, log).RegisterRoutes(mux)
	for _, r := range extra {
		r.RegisterRoutes(mux)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	var handler http.Handler = mux
	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = middleware.TracingMiddleware(handler)

	return handler
}
