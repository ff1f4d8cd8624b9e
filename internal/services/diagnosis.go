package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

// DiagnosisService runs a submission through the classifier, builds the
// report and records it in the patient history.
type DiagnosisService struct {
	predictor *Predictor
	history   HistoryRepository
	rec       *Recorder
}

func NewDiagnosisService(predictor *Predictor, history HistoryRepository, rec *Recorder) *DiagnosisService {
	return &DiagnosisService{predictor: predictor, history: history, rec: rec}
}

func (s *DiagnosisService) Available() bool {
	return s.predictor.Available()
}

// Diagnose predicts, builds and stores the record. A failed history write
// is logged and the record is still returned.
func (s *DiagnosisService) Diagnose(ctx context.Context, doctor types.Physician, fields map[string]string) (types.DiagnosisRecord, error) {
	input, err := ReportInputFromFields(fields)
	if err != nil {
		return types.DiagnosisRecord{}, err
	}
	pred, err := s.predictor.Predict(ctx, fields)
	if err != nil {
		return types.DiagnosisRecord{}, err
	}

	record := BuildReport(input, pred, pred.Disease, doctor, s.rec.Now())
	record.ID = uuid.NewString()

	if err := s.history.Append(ctx, record); err != nil {
		s.rec.PersistFailed("patients", err)
	}

	s.rec.Metrics().Diagnosis(record.Diagnostic.Disease)
	s.rec.Activity(ctx, KindDiagnosis, doctor.Username,
		fmt.Sprintf("Diagnostic %s pour %s", record.Diagnostic.Disease, patientLabel(record.Patient)))
	s.rec.Publish(ctx, events.Event{
		Type:    events.TypeDiagnosisCreated,
		Actor:   doctor.Username,
		Subject: record.ID,
		Payload: record,
	})
	return record, nil
}

// Get returns a stored record.
func (s *DiagnosisService) Get(ctx context.Context, id string) (types.DiagnosisRecord, error) {
	record, err := s.history.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.DiagnosisRecord{}, ErrRecordNotFound
		}
		return types.DiagnosisRecord{}, err
	}
	return record, nil
}

func patientLabel(p types.PatientInfo) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "patient anonyme"
	}
	return name
}
