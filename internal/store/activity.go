package store

import (
	"context"
	"sync"

	"github.com/diagnoclinic/apiserver/types"
)

// ActivityRepository is the recent-activity log shown on the admin
// dashboard. It is capped and ordered newest first.
type ActivityRepository struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries []types.ActivityEntry
}

func OpenActivityRepository(path string, limit int) (*ActivityRepository, error) {
	if limit < 1 {
		limit = 200
	}
	var entries []types.ActivityEntry
	if err := readJSON(path, &entries); err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return &ActivityRepository{path: path, limit: limit, entries: entries}, nil
}

func (r *ActivityRepository) Append(ctx context.Context, entry types.ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append([]types.ActivityEntry{entry}, r.entries...)
	if len(r.entries) > r.limit {
		r.entries = r.entries[:r.limit]
	}
	return persistErr(writeJSON(r.path, r.entries))
}

// Recent returns up to limit entries, newest first.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]types.ActivityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.ActivityEntry, n)
	copy(out, r.entries[:n])
	return out, nil
}
