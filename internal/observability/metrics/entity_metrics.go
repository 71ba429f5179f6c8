// Package metrics defines the metric names and tag conventions of the entity metrics
// cache and emits them to a statsd.Sink.
package metrics

import (
	"time"

	obserrors "github.com/target/entity-metrics/internal/observability/errors"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"

	// Lock outcomes.
	ResultAcquired  = "acquired"
	ResultContended = "contended"
)

// Metric names.
const (
	MetricPopulate         = "entity_metrics.populate"
	MetricPopulateDuration = "entity_metrics.populate_duration"
	MetricPopulateEntities = "entity_metrics.populate_entities"
	MetricLock             = "entity_metrics.lock"
	MetricFetch            = "entity_metrics.fetch"
	MetricPrewarm          = "entity_metrics.prewarm"
)

// Populate stages reported through MetricPopulateEntities.
const (
	StageRequested = "requested"
	StageMissing   = "missing"
	StageAcquired  = "acquired"
	StageSkipped   = "skipped"
	StageWritten   = "written"
)

// PopulateMetric captures the outcome of one populate call.
type PopulateMetric struct {
	EntityType string
	Result     string
	Duration   time.Duration
	// Stages maps a Stage* constant to the number of entities that reached it.
	Stages map[string]int
	Err    error
}

// EmitPopulate emits the populate counter, duration and per-stage entity counts.
func EmitPopulate(sink statsd.Sink, in PopulateMetric) {
	if sink == nil {
		return
	}

	tags := withErrorClass(map[string]string{
		"entity_type": in.EntityType,
		"result":      in.Result,
	}, in.Result, in.Err)

	sink.Count(MetricPopulate, 1, tags)
	if in.Duration > 0 {
		sink.Timing(MetricPopulateDuration, in.Duration, CloneTags(tags))
	}
	for stage, n := range in.Stages {
		if n <= 0 {
			continue
		}
		sink.Count(MetricPopulateEntities, int64(n), map[string]string{
			"entity_type": in.EntityType,
			"stage":       stage,
		})
	}
}

// EmitLock records a lock attempt outcome (acquired, contended or error).
func EmitLock(sink statsd.Sink, entityType, result string) {
	if sink == nil {
		return
	}
	sink.Count(MetricLock, 1, map[string]string{
		"entity_type": entityType,
		"result":      result,
	})
}

// OperationMetric captures a fetch, bust, refresh or prewarm call.
type OperationMetric struct {
	EntityType string
	Operation  string
	Result     string
	Count      int
	Err        error
}

// EmitFetch emits the accessor operation counter, weighted by the number of ids.
func EmitFetch(sink statsd.Sink, in OperationMetric) {
	emitOperation(sink, MetricFetch, in)
}

// EmitPrewarm emits the pre-warm counter, weighted by the number of candidate ids.
func EmitPrewarm(sink statsd.Sink, in OperationMetric) {
	emitOperation(sink, MetricPrewarm, in)
}

func emitOperation(sink statsd.Sink, name string, in OperationMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"entity_type": in.EntityType,
		"result":      in.Result,
	}
	if in.Operation != "" {
		tags["operation"] = in.Operation
	}
	sink.Count(name, int64(max(in.Count, 1)), withErrorClass(tags, in.Result, in.Err))
}

func withErrorClass(tags map[string]string, result string, err error) map[string]string {
	if err != nil && result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	return tags
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
