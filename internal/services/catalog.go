package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

// CatalogService manages the hospital services list shown to
// administrators.
type CatalogService struct {
	services ServiceRepository
	mapping  *DiseaseMapping
	rec      *Recorder
}

func NewCatalogService(services ServiceRepository, mapping *DiseaseMapping, rec *Recorder) *CatalogService {
	return &CatalogService{
		services: services,
		mapping:  mapping,
		rec:      rec,
	}
}

func (s *CatalogService) List(ctx context.Context) ([]types.HospitalService, error) {
	return s.services.List(ctx)
}

// Add creates a service. Names are unique regardless of case and
// surrounding spaces.
func (s *CatalogService) Add(ctx context.Context, actor, name, code, description string) (types.HospitalService, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.HospitalService{}, ErrMissingFields
	}

	existing, err := s.services.List(ctx)
	if err != nil {
		return types.HospitalService{}, err
	}
	for _, svc := range existing {
		if s.normalize(svc.Name) == s.normalize(name) {
			return types.HospitalService{}, ErrServiceExists
		}
	}

	svc := types.HospitalService{
		ID:          uuid.NewString(),
		Name:        name,
		Code:        strings.TrimSpace(code),
		Description: strings.TrimSpace(description),
	}
	if err := s.services.Add(ctx, svc); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			return types.HospitalService{}, err
		}
		s.rec.PersistFailed("services", err)
	}

	s.rec.Activity(ctx, KindService, actor, "Service ajouté: "+svc.Name)
	s.rec.Publish(ctx, events.Event{Type: events.TypeServiceAdded, Actor: actor, Subject: svc.ID, Payload: svc})
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, actor, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingFields
	}
	if err := s.services.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrServiceNotFound
		case errors.Is(err, store.ErrPersistence):
			s.rec.PersistFailed("services", err)
		default:
			return err
		}
	}

	s.rec.Activity(ctx, KindService, actor, "Service supprimé")
	s.rec.Publish(ctx, events.Event{Type: events.TypeServiceDeleted, Actor: actor, Subject: id})
	return nil
}

// ReloadFromMapping replaces the catalog with one service per distinct
// routing service of the disease mapping, in class order.
func (s *CatalogService) ReloadFromMapping(ctx context.Context, actor string) ([]types.HospitalService, error) {
	seen := map[string]int{}
	var rebuilt []types.HospitalService
	for _, entry := range s.mapping.Entries() {
		name := strings.TrimSpace(entry.Service)
		if name == "" {
			continue
		}
		key := s.normalize(name)
		if idx, ok := seen[key]; ok {
			rebuilt[idx].Description += ", " + entry.Name
			continue
		}
		seen[key] = len(rebuilt)
		rebuilt = append(rebuilt, types.HospitalService{
			ID:          uuid.NewString(),
			Name:        name,
			Description: "Maladies: " + entry.Name,
		})
	}
	if rebuilt == nil {
		rebuilt = []types.HospitalService{}
	}

	if err := s.services.Replace(ctx, rebuilt); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			return nil, err
		}
		s.rec.PersistFailed("services", err)
	}

	s.rec.Activity(ctx, KindService, actor, "Services rechargés depuis le mapping des maladies")
	s.rec.Publish(ctx, events.Event{Type: events.TypeServicesReloaded, Actor: actor, Payload: rebuilt})
	return rebuilt, nil
}

func (s *CatalogService) normalize(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
