package storage

import "context"

// KV is the durable key-value boundary the activity engine persists through.
// Implementations are interface-driven to keep the domain logic testable and
// to allow swapping in-memory, file-based, or external persistence without
// rewiring business code. The engine only ever uses a single logical key.
type KV interface {
	// Get returns the raw value stored under key. Missing keys return
	// ErrNotFound; unreachable backends return an error wrapping
	// ErrUnavailable.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key entirely. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
