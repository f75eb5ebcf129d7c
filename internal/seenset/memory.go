package seenset

import (
	"context"
	"sync"

	"github.com/bakkerme/salewatch/internal/core"
)

// MemoryStore keeps the seen-set in process memory. It is lost on exit.
type MemoryStore struct {
	mu   sync.RWMutex
	data core.SeenSet
}

func NewMemoryStore(initial core.SeenSet) *MemoryStore {
	data := make(core.SeenSet, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &MemoryStore{data: data}
}

func (s *MemoryStore) Load(ctx context.Context) (core.SeenSet, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(core.SeenSet, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Merge(ctx context.Context, delta core.SeenSet) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		if k == "" {
			continue
		}
		if _, ok := s.data[k]; ok {
			continue
		}
		s.data[k] = v
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
