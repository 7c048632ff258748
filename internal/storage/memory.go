package storage

import (
	"context"
	"sync"
)

// InMemoryKV keeps the initial implementation lightweight and testable. It
// intentionally favors clarity over performance.
type InMemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailWrites and FailReads let tests simulate an unreachable backend.
	FailWrites bool
	FailReads  bool
}

func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{data: make(map[string][]byte)}
}

func (s *InMemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, ErrUnavailable
	}
	if v, ok := s.data[key]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrUnavailable
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

func (s *InMemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrUnavailable
	}
	delete(s.data, key)
	return nil
}
