package plan

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{plans: make(map[string]Plan)}
}

func (r *memoryRepository) Upsert(_ context.Context, p Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.plans[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.plans[p.ID] = p
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) ListActive(_ context.Context) ([]Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plan
	for _, p := range r.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
