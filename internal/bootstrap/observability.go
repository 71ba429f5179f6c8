package bootstrap

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/observability/prom"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// ObservabilityContainer groups shared metric emitters.
type ObservabilityContainer struct {
	// Sink fans out to every enabled backend; nil when metrics are disabled.
	Sink statsd.Sink
	// Handler serves the Prometheus exposition; nil when Prometheus is disabled.
	Handler http.Handler
	Path    string

	statsd *statsd.Client
}

// Close releases the StatsD connection.
func (o ObservabilityContainer) Close() error {
	if o.statsd == nil {
		return nil
	}
	return o.statsd.Close()
}

// buildObservability configures the StatsD client and Prometheus registry.
// A StatsD dial failure is logged and leaves the remaining sinks in place.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}
	out := ObservabilityContainer{Path: cfg.Prometheus.Path}

	var sinks []statsd.Sink
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			Logger:     logger,
			GlobalTags: map[string]string{"service": cfg.Metrics.ServiceName},
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.statsd = client
			sinks = append(sinks, client)
		}
	}

	if cfg.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		if err := registerRuntimeCollectors(reg); err != nil {
			logger.Warn("failed to register runtime collectors", "error", err)
		}
		sinks = append(sinks, prom.New(reg, cfg.Prometheus.Namespace, nil))
		out.Handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	out.Sink = statsd.Multi(sinks...)
	return out
}

func registerRuntimeCollectors(reg prometheus.Registerer) error {
	return errors.Join(
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	)
}
