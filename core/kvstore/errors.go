package kvstore

import "errors"

var (
	// ErrStoreUnavailable wraps driver-level failures. Callers treat it as a
	// degraded read (unknown membership) rather than a fatal condition.
	ErrStoreUnavailable = errors.New("key-value store unavailable")

	// ErrEncodeValue is returned when a value cannot be marshaled to JSON.
	ErrEncodeValue = errors.New("failed to encode value as JSON")
)
