package assistant

import (
	"context"
	"sync"
)

// MemoryRepo holds assistants in memory for tests and development.
type MemoryRepo struct {
	mu         sync.RWMutex
	assistants map[string]Assistant
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{assistants: map[string]Assistant{}}
}

func (r *MemoryRepo) Put(a Assistant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assistants[a.ID] = a
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assistants[id]
	if !ok {
		return Assistant{}, ErrAssistantNotFound
	}
	return a, nil
}
