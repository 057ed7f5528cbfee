package activities

import (
	"context"
	"sort"
	"sync"
)

// Repository persists normalized activity records keyed by Strava activity
// id, which makes repeated syncs idempotent.
type Repository interface {
	Upsert(ctx context.Context, records []Record) error
	List(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
}

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[int64]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[int64]Record{}}
}

func (r *MemoryRepository) Upsert(_ context.Context, records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return nil
}

// List returns all records, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}
