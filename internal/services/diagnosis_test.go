package services

import (
	"context"
	"errors"
	"testing"

	"github.com/diagnoclinic/apiserver/types"
)

func TestDiagnoseStoresRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	model := &fakeModel{features: trainingOrder(), class: 3, proba: []float64{0.05, 0.05, 0.1, 0.8}}
	svc := NewDiagnosisService(NewPredictor(model, DefaultDiseaseMapping()), f.history, f.rec)

	fields := exampleFields()
	fields["gender"] = "1"
	record, err := svc.Diagnose(ctx, types.Physician{Username: "dr.martin", Name: "Dr. Martin", Specialty: "Pneumologue"}, fields)
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if record.ID == "" || record.Diagnostic.Disease != "Covid-19" || record.Diagnostic.Confidence != "80.0%" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Patient.Gender != "Femme" || record.Patient.LastName != "Alaoui" || record.Patient.Age != "45" {
		t.Fatalf("unexpected patient %+v", record.Patient)
	}

	stored, err := svc.Get(ctx, record.ID)
	if err != nil || stored.Diagnostic.Service != "Service des Maladies Infectieuses" {
		t.Fatalf("unexpected stored record %+v, %v", stored, err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	entries, _ := f.activity.Recent(ctx, 1)
	if len(entries) != 1 || entries[0].Kind != KindDiagnosis {
		t.Fatalf("expected diagnosis activity, got %+v", entries)
	}
}
