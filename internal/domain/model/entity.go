// Package model defines the core data types shared by the entity metrics cache.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EntityType identifies the kind of domain object metrics are attached to.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type EntityType string

const (
	// EntityTypeImage represents an uploaded image.
	EntityTypeImage EntityType = "image"
	// EntityTypePost represents a post grouping one or more images.
	EntityTypePost EntityType = "post"
	// EntityTypeModel represents a published model.
	EntityTypeModel EntityType = "model"
	// EntityTypeArticle represents a long-form article.
	EntityTypeArticle EntityType = "article"
)

// ErrInvalidEntityType is returned when an entity type is not part of the closed set.
var ErrInvalidEntityType = errors.New("invalid entity type")

// AllEntityTypes returns every supported entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityTypeImage, EntityTypePost, EntityTypeModel, EntityTypeArticle}
}

// Valid returns true if the EntityType is part of the supported set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeImage, EntityTypePost, EntityTypeModel, EntityTypeArticle:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t EntityType) String() string { return string(t) }

// UnmarshalText implements encoding.TextUnmarshaler for EntityType to allow env parsing.
func (t *EntityType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEntityType normalises and validates an entity type name.
func ParseEntityType(raw string) (EntityType, error) {
	et := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	if !et.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityType, raw)
	}
	return et, nil
}

// EntityRef identifies the subject of a metric set.
type EntityRef struct {
	Type EntityType
	ID   int64
}

// String renders the ref as "type:id", the suffix used by cache keys.
func (r EntityRef) String() string {
	return string(r.Type) + ":" + strconv.FormatInt(r.ID, 10)
}

// RefsFor builds refs of a single type for the given ids.
func RefsFor(entityType EntityType, ids []int64) []EntityRef {
	refs := make([]EntityRef, len(ids))
	for i, id := range ids {
		refs[i] = EntityRef{Type: entityType, ID: id}
	}
	return refs
}

// UniqueIDs returns ids with duplicates removed, preserving first-seen order.
func UniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
