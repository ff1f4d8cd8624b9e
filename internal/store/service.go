package store

import (
	"context"
	"sync"

	"github.com/diagnoclinic/apiserver/types"
)

// ServiceRepository holds the hospital services catalog in the order it was
// built.
type ServiceRepository struct {
	mu       sync.Mutex
	path     string
	services []types.HospitalService
}

func OpenServiceRepository(path string) (*ServiceRepository, error) {
	var services []types.HospitalService
	if err := readJSON(path, &services); err != nil {
		return nil, err
	}
	return &ServiceRepository{path: path, services: services}, nil
}

func (r *ServiceRepository) List(ctx context.Context) ([]types.HospitalService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.HospitalService, len(r.services))
	copy(out, r.services)
	return out, nil
}

// Add appends service. IDs must be unique.
func (r *ServiceRepository) Add(ctx context.Context, service types.HospitalService) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.services {
		if existing.ID == service.ID {
			return ErrConflict
		}
	}
	r.services = append(r.services, service)
	return persistErr(writeJSON(r.path, r.services))
}

func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.services {
		if existing.ID == id {
			r.services = append(r.services[:i:i], r.services[i+1:]...)
			return persistErr(writeJSON(r.path, r.services))
		}
	}
	return ErrNotFound
}

// Replace swaps the whole catalog.
func (r *ServiceRepository) Replace(ctx context.Context, services []types.HospitalService) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services = append([]types.HospitalService(nil), services...)
	return persistErr(writeJSON(r.path, r.services))
}
