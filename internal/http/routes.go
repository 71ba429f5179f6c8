package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/entity-metrics/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	EntityMetrics *service.EntityMetricsService
	// Optional: dependency probes reported by /healthz.
	HealthChecks map[string]HealthCheck
	// Optional: Prometheus exposition handler mounted at MetricsPath.
	MetricsHandler http.Handler
	MetricsPath    string
	// Configuration
	MaxIDsPerRequest int
	Logger           *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	health := &HealthHandlers{Checks: services.HealthChecks}
	mux.Handle("GET /healthz", http.HandlerFunc(health.Health))
	mux.Handle("HEAD /healthz", http.HandlerFunc(health.Health))

	if services.EntityMetrics != nil {
		registerMetricsRoutes(mux, &MetricsHandlers{
			Svc:    services.EntityMetrics,
			MaxIDs: services.MaxIDsPerRequest,
			Logger: services.Logger,
		})
	}

	if services.MetricsHandler != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.MetricsHandler)
	}

	return mux
}

func registerMetricsRoutes(mux *http.ServeMux, h *MetricsHandlers) {
	mux.HandleFunc("GET /api/metrics/{entityType}", h.Fetch)
	mux.HandleFunc("DELETE /api/metrics/{entityType}", h.Bust)
	mux.HandleFunc("POST /api/metrics/{entityType}/refresh", h.Refresh)
	mux.HandleFunc("POST /api/metrics/{entityType}/flush", h.Flush)
	mux.HandleFunc("POST /api/metrics/{entityType}/prewarm", h.Prewarm)
}
