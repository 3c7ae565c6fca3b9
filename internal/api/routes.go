package api

import (
	"net/http"
	"provisioner/internal/health"
	"provisioner/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Instances     InstanceService
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Instances, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /rest/instances/{instanceId}/create", authMiddleware(http.HandlerFunc(handler.CreateInstance)))
	mux.Handle("POST /rest/instances/{instanceId}/delete", authMiddleware(http.HandlerFunc(handler.DeleteInstance)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
