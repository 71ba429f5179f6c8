package model

import (
	"fmt"
	"strings"
)

// MetricKind identifies a countable signal attached to an entity.
type MetricKind string

const (
	MetricKindReactionLike  MetricKind = "reactionLike"
	MetricKindReactionHeart MetricKind = "reactionHeart"
	MetricKindReactionLaugh MetricKind = "reactionLaugh"
	MetricKindReactionCry   MetricKind = "reactionCry"
	MetricKindComment       MetricKind = "comment"
	MetricKindCollection    MetricKind = "collection"
	// MetricKindBuzz counts monetary credit (tips) sent to the entity.
	MetricKindBuzz MetricKind = "buzz"
)

// AllMetricKinds returns every known metric kind in a stable order.
func AllMetricKinds() []MetricKind {
	return []MetricKind{
		MetricKindReactionLike,
		MetricKindReactionHeart,
		MetricKindReactionLaugh,
		MetricKindReactionCry,
		MetricKindComment,
		MetricKindCollection,
		MetricKindBuzz,
	}
}

// Valid reports whether k is a known metric kind.
func (k MetricKind) Valid() bool {
	for _, known := range AllMetricKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ParseMetricKind matches raw case-insensitively against the known kinds.
func ParseMetricKind(raw string) (MetricKind, error) {
	trimmed := strings.TrimSpace(raw)
	for _, known := range AllMetricKinds() {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid metric kind: %q", raw)
}

// MetricData is one aggregated row: the all-time total of a kind for an entity.
type MetricData struct {
	EntityID int64      `db:"entity_id"`
	Kind     MetricKind `db:"metric_kind"`
	Total    int64      `db:"total"`
}

// MetricSet maps metric kinds to totals for a single entity.
// Only positive totals are ever present; a missing kind is not the same as a stored zero.
type MetricSet map[MetricKind]int64

// GroupByEntity folds aggregation rows into one MetricSet per entity id.
// Rows with a non-positive total or unknown kind are dropped.
func GroupByEntity(rows []MetricData) map[int64]MetricSet {
	out := make(map[int64]MetricSet)
	for _, row := range rows {
		if row.Total <= 0 || !row.Kind.Valid() {
			continue
		}
		set, ok := out[row.EntityID]
		if !ok {
			set = make(MetricSet)
			out[row.EntityID] = set
		}
		set[row.Kind] = row.Total
	}
	return out
}

// NormalizedMetricRecord is the fixed-shape record returned to callers.
// Each field is nil when the corresponding kind has not been recorded for the entity.
type NormalizedMetricRecord struct {
	ReactionLike  *int64 `json:"reactionLike"`
	ReactionHeart *int64 `json:"reactionHeart"`
	ReactionLaugh *int64 `json:"reactionLaugh"`
	ReactionCry   *int64 `json:"reactionCry"`
	Comment       *int64 `json:"comment"`
	Collection    *int64 `json:"collection"`
	Buzz          *int64 `json:"buzz"`
}

// Normalize converts a (possibly nil) MetricSet into a NormalizedMetricRecord.
func Normalize(set MetricSet) NormalizedMetricRecord {
	return NormalizedMetricRecord{
		ReactionLike:  lookup(set, MetricKindReactionLike),
		ReactionHeart: lookup(set, MetricKindReactionHeart),
		ReactionLaugh: lookup(set, MetricKindReactionLaugh),
		ReactionCry:   lookup(set, MetricKindReactionCry),
		Comment:       lookup(set, MetricKindComment),
		Collection:    lookup(set, MetricKindCollection),
		Buzz:          lookup(set, MetricKindBuzz),
	}
}

func lookup(set MetricSet, kind MetricKind) *int64 {
	v, ok := set[kind]
	if !ok {
		return nil
	}
	return &v
}
