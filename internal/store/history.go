package store

import (
	"context"
	"sync"

	"github.com/diagnoclinic/apiserver/types"
)

// HistoryRepository keeps the capped patient history as a JSON list,
// most recent first.
type HistoryRepository struct {
	mu    sync.Mutex
	path  string
	limit int
}

func NewHistoryRepository(path string, limit int) *HistoryRepository {
	if limit < 1 {
		limit = 1000
	}
	return &HistoryRepository{path: path, limit: limit}
}

// Append prepends record and truncates the list to the configured cap.
func (r *HistoryRepository) Append(ctx context.Context, record types.DiagnosisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []types.DiagnosisRecord
	if err := readJSON(r.path, &records); err != nil {
		return err
	}

	records = append([]types.DiagnosisRecord{record}, records...)
	if len(records) > r.limit {
		records = records[:r.limit]
	}
	return persistErr(writeJSON(r.path, records))
}

// List returns up to limit records, most recent first. A limit below one
// returns the whole history.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]types.DiagnosisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []types.DiagnosisRecord
	if err := readJSON(r.path, &records); err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []types.DiagnosisRecord{}
	}
	return records, nil
}

func (r *HistoryRepository) Get(ctx context.Context, id string) (types.DiagnosisRecord, error) {
	records, err := r.List(ctx, 0)
	if err != nil {
		return types.DiagnosisRecord{}, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return types.DiagnosisRecord{}, ErrNotFound
}

func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	records, err := r.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
