package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/entity-metrics/config"
	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/domain/model"
	"github.com/target/entity-metrics/internal/observability/metrics"
	"github.com/target/entity-metrics/internal/observability/statsd"
)

// MetricPrewarmerOptions groups dependencies for MetricPrewarmer.
type MetricPrewarmerOptions struct {
	Repo      core.AggregationRepository // Required: source of recently active ids
	Populator *MetricPopulator           // Required: cache filler
	Config    config.PrewarmConfig       // Required: pre-warm configuration
	Logger    *slog.Logger               // Optional: structured logger
	Metrics   statsd.Sink                // Optional: metrics sink
}

// PrewarmResult summarizes one pre-warm pass over an entity type.
type PrewarmResult struct {
	EntityType model.EntityType `json:"entityType"`
	Candidates int              `json:"candidates"`
	Populate   PopulateResult   `json:"populate"`
	Err        error            `json:"-"`
}

// MetricPrewarmer populates the cache for recently active entities ahead of reads.
type MetricPrewarmer struct {
	repo      core.AggregationRepository
	populator *MetricPopulator
	config    config.PrewarmConfig
	logger    *slog.Logger
	metrics   statsd.Sink
	now       func() time.Time
}

// NewMetricPrewarmer constructs a MetricPrewarmer.
func NewMetricPrewarmer(opts MetricPrewarmerOptions) (*MetricPrewarmer, error) {
	if opts.Repo == nil {
		return nil, errors.New("AggregationRepository is required")
	}
	if opts.Populator == nil {
		return nil, errors.New("MetricPopulator is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "metric_prewarmer")
	logger.Debug("MetricPrewarmer initialized",
		"interval", cfg.Interval,
		"window", cfg.Window,
		"limit", cfg.Limit,
		"entity_types", cfg.EntityTypes,
	)

	return &MetricPrewarmer{
		repo:      opts.Repo,
		populator: opts.Populator,
		config:    cfg,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}, nil
}

// PreWarm populates up to limit entities of entityType with activity inside the configured
// window. A non-positive limit uses the configured one. Failures land in the result.
func (w *MetricPrewarmer) PreWarm(ctx context.Context, entityType model.EntityType, limit int) PrewarmResult {
	res := PrewarmResult{EntityType: entityType}
	if limit <= 0 {
		limit = w.config.Limit
	}

	ids, err := w.repo.ListRecentlyActive(ctx, core.ListRecentlyActiveParams{
		EntityType: entityType,
		Since:      w.now().Add(-w.config.Window),
		Limit:      limit,
	})
	if err != nil {
		res.Err = fmt.Errorf("list recently active %s: %w", entityType, err)
		w.logger.WarnContext(ctx, "prewarm candidate lookup failed", "entity_type", entityType, "error", err)
		w.emit(res)
		return res
	}
	res.Candidates = len(ids)

	res.Populate = w.populator.Populate(ctx, entityType, ids, PopulateOptions{})
	res.Err = res.Populate.Err

	w.logger.InfoContext(ctx, "prewarm pass complete",
		"entity_type", entityType,
		"candidates", res.Candidates,
		"acquired", res.Populate.Acquired,
		"written", res.Populate.Written,
	)
	w.emit(res)
	return res
}

// Run pre-warms every configured entity type on each tick until ctx is canceled.
// Returns nil on graceful shutdown.
func (w *MetricPrewarmer) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting prewarmer", "interval", w.config.Interval)

	w.waitWithJitter(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "prewarmer stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *MetricPrewarmer) runPass(ctx context.Context) {
	for _, entityType := range w.config.EntityTypes {
		if ctx.Err() != nil {
			return
		}
		res := w.PreWarm(ctx, entityType, w.config.Limit)
		if res.Err == nil {
			continue
		}
		if isContextCancellation(res.Err) {
			w.logger.DebugContext(ctx, "prewarm cancelled by context", "entity_type", entityType)
			continue
		}
		w.logger.ErrorContext(ctx, "prewarm failed", "entity_type", entityType, "error", res.Err)
	}
}

// waitWithJitter delays startup by up to 10% of the interval so replicas spread out.
func (w *MetricPrewarmer) waitWithJitter(ctx context.Context) {
	maxJitter := int64(w.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		w.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (w *MetricPrewarmer) emit(res PrewarmResult) {
	result := metrics.ResultSuccess
	switch {
	case res.Err != nil:
		result = metrics.ResultError
	case res.Candidates == 0:
		result = metrics.ResultNoop
	}
	metrics.EmitPrewarm(w.metrics, metrics.OperationMetric{
		EntityType: string(res.EntityType),
		Result:     result,
		Count:      res.Candidates,
		Err:        res.Err,
	})
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
