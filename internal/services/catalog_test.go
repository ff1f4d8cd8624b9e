package services

import (
	"context"
	"errors"
	"testing"
)

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCatalogService(f.services, DefaultDiseaseMapping(), f.rec)

	added, err := svc.Add(ctx, "dr.smith", "Service de Cardiologie", "CARD", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, "dr.smith", "  service de  CARDIOLOGIE ", "", ""); !errors.Is(err, ErrServiceExists) {
		t.Fatalf("expected ErrServiceExists, got %v", err)
	}
	if err := svc.Delete(ctx, "dr.smith", added.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "dr.smith", added.ID); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}

	rebuilt, err := svc.ReloadFromMapping(ctx, "dr.smith")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(rebuilt) != 3 {
		t.Fatalf("expected one service per distinct routing, got %+v", rebuilt)
	}
	if rebuilt[0].Name != "Service de Pneumologie" || rebuilt[0].Description != "Maladies: Pneumonie, Bronchite" {
		t.Fatalf("unexpected first service %+v", rebuilt[0])
	}
	list, _ := svc.List(ctx)
	if len(list) != 3 {
		t.Fatalf("catalog not replaced: %+v", list)
	}
}
