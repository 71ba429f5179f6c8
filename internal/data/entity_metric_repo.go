package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/entity-metrics/internal/core"
	"github.com/target/entity-metrics/internal/data/pgxutil"
	"github.com/target/entity-metrics/internal/domain/model"
	apperrors "github.com/target/entity-metrics/internal/errors"
)

const entityMetricTotalsQuery = `
	SELECT entity_id, metric_kind, SUM(value)::BIGINT AS total
	FROM entity_metric_events
	WHERE entity_type = $1 AND entity_id = ANY($2)
	GROUP BY entity_id, metric_kind
	HAVING SUM(value) > 0`

const entityMetricRecentQuery = `
	SELECT entity_id
	FROM entity_metric_events
	WHERE entity_type = $1 AND created_at >= $2
	GROUP BY entity_id
	ORDER BY MAX(created_at) DESC
	LIMIT $3`

const entityMetricInsertQuery = `
	INSERT INTO entity_metric_events (entity_type, entity_id, metric_kind, value, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// defaultRecentLimit caps ListRecentlyActive when callers pass a non-positive limit.
const defaultRecentLimit = 1000

// EntityMetricRepo implements core.AggregationRepository on top of the
// entity_metric_events table.
type EntityMetricRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.AggregationRepository = (*EntityMetricRepo)(nil)

// NewEntityMetricRepo creates a new EntityMetricRepo with the given database connection.
func NewEntityMetricRepo(db *sql.DB) *EntityMetricRepo {
	return &EntityMetricRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewEntityMetricRepoWithTimeProvider creates an EntityMetricRepo with a custom time provider (useful for tests).
func NewEntityMetricRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *EntityMetricRepo {
	return &EntityMetricRepo{DB: db, timeProvider: tp}
}

// LoadMetrics runs one grouped aggregation for all ids. Callers bound len(ids).
func (r *EntityMetricRepo) LoadMetrics(
	ctx context.Context,
	entityType model.EntityType,
	ids []int64,
) ([]model.MetricData, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if !entityType.Valid() {
		return nil, apperrors.Wrap(model.ErrInvalidEntityType, apperrors.ErrCodeValidation, "invalid entity type")
	}

	var out []model.MetricData
	if err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, entityMetricTotalsQuery, string(entityType), ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.MetricData])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to load %s metrics: %w", entityType, apperrors.MapDBError(err))
	}
	return out, nil
}

// ListRecentlyActive returns distinct entity ids with events at or after params.Since.
func (r *EntityMetricRepo) ListRecentlyActive(
	ctx context.Context,
	params core.ListRecentlyActiveParams,
) ([]int64, error) {
	if !params.EntityType.Valid() {
		return nil, apperrors.Wrap(model.ErrInvalidEntityType, apperrors.ErrCodeValidation, "invalid entity type")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	var ids []int64
	if err := pgxutil.WithConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, entityMetricRecentQuery, string(params.EntityType), params.Since.UTC(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list recently active %s: %w", params.EntityType, apperrors.MapDBError(err))
	}
	return ids, nil
}

// RecordEventParams describes one metric event to append.
type RecordEventParams struct {
	Ref   model.EntityRef
	Kind  model.MetricKind
	Value int64
}

// RecordEvents appends metric events in a single transaction. It feeds the aggregation
// store for local development and integration tests; production writers live elsewhere.
func (r *EntityMetricRepo) RecordEvents(ctx context.Context, events []RecordEventParams) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if !ev.Ref.Type.Valid() || !ev.Kind.Valid() {
			return apperrors.Validation(fmt.Sprintf("invalid event %s/%s", ev.Ref, ev.Kind))
		}
		if ev.Value == 0 {
			return apperrors.ValidationField("value", fmt.Sprintf("event %s/%s value must be non-zero", ev.Ref, ev.Kind))
		}
	}

	now := r.timeProvider.Now().UTC()
	return pgxutil.WithTx(ctx, r.DB, nil, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			batch.Queue(entityMetricInsertQuery, string(ev.Ref.Type), ev.Ref.ID, string(ev.Kind), ev.Value, now)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to record metric events: %w", apperrors.MapDBError(err))
		}
		return nil
	})
}
