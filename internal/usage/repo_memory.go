package usage

import (
	"context"
	"sync"
)

// MemoryRepo is the in-memory repository used by tests and development.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Append(_ context.Context, e LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) ListByCall(_ context.Context, callID string) ([]LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LogEntry
	for _, e := range r.entries {
		if e.CallID == callID {
			out = append(out, e)
		}
	}
	return out, nil
}
