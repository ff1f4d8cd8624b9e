package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

type fakeModel struct {
	features []string
	class    int
	proba    []float64
	lastRow  []float64
}

func (m *fakeModel) FeatureNames() []string { return m.features }

func (m *fakeModel) Predict(ctx context.Context, row []float64) (int, error) {
	m.lastRow = append([]float64(nil), row...)
	return m.class, nil
}

func (m *fakeModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	return m.proba, nil
}

func trainingOrder() []string {
	return []string{
		"Fever", "Cough", "Fatigue", "Difficulty Breathing", "Age", "Gender",
		"Blood Pressure", "Cholesterol Level", "Outcome Variable",
	}
}

type fixture struct {
	dir      string
	doctors  *store.DoctorRepository
	history  *store.HistoryRepository
	tokens   *store.ResetTokenRepository
	activity *store.ActivityRepository
	services *store.ServiceRepository
	rec      *Recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	doctors, err := store.OpenDoctorRepository(filepath.Join(dir, "medecins.json"), 1001)
	if err != nil {
		t.Fatalf("open doctors: %v", err)
	}
	tokens, err := store.OpenResetTokenRepository(filepath.Join(dir, "reset_tokens.json"))
	if err != nil {
		t.Fatalf("open tokens: %v", err)
	}
	activity, err := store.OpenActivityRepository(filepath.Join(dir, "activity.json"), 200)
	if err != nil {
		t.Fatalf("open activity: %v", err)
	}
	catalog, err := store.OpenServiceRepository(filepath.Join(dir, "services.json"))
	if err != nil {
		t.Fatalf("open services: %v", err)
	}

	f := &fixture{
		dir:      dir,
		doctors:  doctors,
		history:  store.NewHistoryRepository(filepath.Join(dir, "patients.json"), 1000),
		tokens:   tokens,
		activity: activity,
		services: catalog,
		now:      time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
	}
	f.rec = NewRecorder(activity, nil, nil, zerolog.Nop())
	f.rec.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addDoctor(t *testing.T, doctor types.Doctor, password string) types.Doctor {
	t.Helper()
	admin := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")
	created, err := admin.AddDoctor(context.Background(), "test", AddDoctorInput{
		Username:  doctor.Username,
		Name:      doctor.Name,
		Specialty: doctor.Specialty,
		Email:     doctor.Email,
		Password:  password,
		IsAdmin:   doctor.IsAdmin,
	})
	if err != nil {
		t.Fatalf("add doctor: %v", err)
	}
	return created
}
