package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrEmptyKey is returned when a cache operation is given an empty key.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrRedisClientRequired is returned when a Redis-backed repo is built without a client.
	ErrRedisClientRequired = errors.New("redis client is required")
)
