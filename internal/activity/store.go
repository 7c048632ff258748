package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"vaulttrail/internal/storage"
)

// MaxLogs bounds the stored collection; inserting beyond it evicts the oldest
// (tail) records first.
const MaxLogs = 1000

// StorageKey is the single durable-store key holding the serialized collection.
const StorageKey = "activity_logs"

// LogStore is the single source of truth for the activity collection. The
// whole collection is one serializable blob: ordering, retention eviction, and
// read consistency stay trivial at the cost of an O(n) rewrite per mutation,
// acceptable because n ≤ MaxLogs and records are small.
type LogStore interface {
	// Load reads the whole collection, newest first. A missing key yields an
	// empty collection, never an error.
	Load(ctx context.Context) ([]Log, error)
	// Replace overwrites the stored collection, truncating to MaxLogs by
	// dropping the oldest entries beyond the limit.
	Replace(ctx context.Context, logs []Log) error
	// Clear removes the collection key entirely.
	Clear(ctx context.Context) error
}

// BlobStore implements LogStore over a single key in a storage.KV backend.
type BlobStore struct {
	kv      storage.KV
	key     string
	maxLogs int
	logger  *slog.Logger
}

type BlobStoreOption func(*BlobStore)

// WithStorageKey overrides the durable-store key, mainly so tests can isolate
// collections sharing one backend.
func WithStorageKey(key string) BlobStoreOption {
	return func(s *BlobStore) { s.key = key }
}

// WithMaxLogs overrides the retention bound.
func WithMaxLogs(n int) BlobStoreOption {
	return func(s *BlobStore) { s.maxLogs = n }
}

func WithStoreLogger(logger *slog.Logger) BlobStoreOption {
	return func(s *BlobStore) { s.logger = logger }
}

func NewBlobStore(kv storage.KV, opts ...BlobStoreOption) (*BlobStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("kv backend is required")
	}
	s := &BlobStore{
		kv:      kv,
		key:     StorageKey,
		maxLogs: MaxLogs,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *BlobStore) Load(ctx context.Context) ([]Log, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []Log{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load activity collection: %w", err)
	}

	var logs []Log
	if err := json.Unmarshal(data, &logs); err != nil {
		// A corrupt blob is treated like a missing one: partial visibility
		// is preferable to a reporting surface that can never load again.
		s.logger.Warn("activity collection corrupt, starting empty", "error", err)
		return []Log{}, nil
	}
	return logs, nil
}

func (s *BlobStore) Replace(ctx context.Context, logs []Log) error {
	if len(logs) > s.maxLogs {
		logs = logs[:s.maxLogs]
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal activity collection: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("replace activity collection: %w", err)
	}
	return nil
}

func (s *BlobStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear activity collection: %w", err)
	}
	return nil
}
