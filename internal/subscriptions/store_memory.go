package subscriptions

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Plan
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Plan)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Plan, bool, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[userID]
	return p, ok, nil
}

func (s *memoryStore) Set(ctx context.Context, userID string, plan Plan) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	plan.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.data[userID] = plan
	s.mu.Unlock()
	return plan, nil
}
