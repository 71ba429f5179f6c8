package httpx

// Error codes returned in the "error" field of JSON error bodies.
const (
	ErrCodeInvalidIDs        = "invalid_ids"
	ErrCodeInvalidEntityType = "invalid_entity_type"
	ErrCodeInvalidLimit      = "invalid_limit"
	ErrCodeFlushUnsupported  = "flush_unsupported"
	ErrCodeFetchFailed       = "fetch_failed"
	ErrCodeBustFailed        = "bust_failed"
	ErrCodeUnavailable       = "unavailable"
)

const (
	// DefaultMaxIDsPerRequest caps the ids accepted by one metrics call.
	DefaultMaxIDsPerRequest = 1000

	// HeaderRequestID carries the per-request correlation id.
	HeaderRequestID = "X-Request-ID"
)
