package storage

import "errors"

var (
	// ErrNotFound keeps storage-specific misses consistent across the
	// in-memory and external implementations.
	ErrNotFound = errors.New("storage: key not found")

	// ErrUnavailable signals that the durable store could not be reached.
	// Callers decide whether to propagate or degrade; the activity service
	// propagates it from LogActivity and swallows it elsewhere.
	ErrUnavailable = errors.New("storage: backend unavailable")
)
