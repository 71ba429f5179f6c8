// Package prom exports the service's statsd-style metrics as Prometheus collectors.
package prom

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/target/entity-metrics/internal/observability/metrics"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// metricLabels fixes the label set of every known metric. Tags outside the set are
// dropped and missing ones are exported as empty strings so label cardinality stays bounded.
var metricLabels = map[string][]string{
	metrics.MetricPopulate:         {"entity_type", "result", "error_class"},
	metrics.MetricPopulateDuration: {"entity_type", "result", "error_class"},
	metrics.MetricPopulateEntities: {"entity_type", "stage"},
	metrics.MetricLock:             {"entity_type", "result"},
	metrics.MetricFetch:            {"entity_type", "operation", "result", "error_class"},
	metrics.MetricPrewarm:          {"entity_type", "result", "error_class"},
}

// Adapter implements statsd.Sink and exports Prometheus counters, gauges and histograms.
// Metrics are registered lazily on first use. A name whose registration fails is
// remembered with a nil vec and skipped afterwards. Safe for concurrent use.
type Adapter struct {
	reg         prometheus.Registerer
	namespace   string
	constLabels prometheus.Labels
	logger      *slog.Logger

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

var _ statsd.Sink = (*Adapter)(nil)

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns:           Prometheus namespace
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Adapter{
		reg:         reg,
		namespace:   ns,
		constLabels: constLabels,
		logger:      slog.Default().With("component", "prometheus"),
		counters:    make(map[string]*prometheus.CounterVec),
		gauges:      make(map[string]*prometheus.GaugeVec),
		histograms:  make(map[string]*prometheus.HistogramVec),
	}
}

// Count adds value to the counter behind name.
func (a *Adapter) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	labels := labelsFor(name)
	vec := a.counter(name, labels)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labelValues(labels, tags)...).Add(float64(value))
}

// Gauge sets the gauge behind name.
func (a *Adapter) Gauge(name string, value float64, tags map[string]string) {
	labels := labelsFor(name)
	vec := a.gauge(name, labels)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labelValues(labels, tags)...).Set(value)
}

// Timing observes value in seconds on the histogram behind name.
func (a *Adapter) Timing(name string, value time.Duration, tags map[string]string) {
	labels := labelsFor(name)
	vec := a.histogram(name, labels)
	if vec == nil {
		return
	}
	vec.WithLabelValues(labelValues(labels, tags)...).Observe(value.Seconds())
}

func (a *Adapter) counter(name string, labels []string) *prometheus.CounterVec {
	a.mu.Lock()
	defer a.mu.Unlock()
	if vec, ok := a.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   a.namespace,
		Name:        promName(name) + "_total",
		Help:        "Count of " + name,
		ConstLabels: a.constLabels,
	}, labels)
	if !a.register(name, vec) {
		vec = nil
	}
	a.counters[name] = vec
	return vec
}

func (a *Adapter) gauge(name string, labels []string) *prometheus.GaugeVec {
	a.mu.Lock()
	defer a.mu.Unlock()
	if vec, ok := a.gauges[name]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   a.namespace,
		Name:        promName(name),
		Help:        "Current value of " + name,
		ConstLabels: a.constLabels,
	}, labels)
	if !a.register(name, vec) {
		vec = nil
	}
	a.gauges[name] = vec
	return vec
}

func (a *Adapter) histogram(name string, labels []string) *prometheus.HistogramVec {
	a.mu.Lock()
	defer a.mu.Unlock()
	if vec, ok := a.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   a.namespace,
		Name:        promName(name) + "_seconds",
		Help:        "Duration of " + name,
		Buckets:     prometheus.DefBuckets,
		ConstLabels: a.constLabels,
	}, labels)
	if !a.register(name, vec) {
		vec = nil
	}
	a.histograms[name] = vec
	return vec
}

// register reports false when the collector clashes with an existing registration.
func (a *Adapter) register(name string, c prometheus.Collector) bool {
	if err := a.reg.Register(c); err != nil {
		a.logger.Warn("prometheus registration failed; metric dropped", "metric", name, "error", err)
		return false
	}
	return true
}

func labelsFor(name string) []string {
	if labels, ok := metricLabels[name]; ok {
		return labels
	}
	return nil
}

func labelValues(labels []string, tags map[string]string) []string {
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = tags[l]
	}
	return values
}

// promName converts a dotted statsd name into a Prometheus metric name.
func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_").Replace(strings.TrimSpace(name))
}
