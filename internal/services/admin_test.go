package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/types"
)

func TestAddDoctorAllocatesIdentity(t *testing.T) {
	f := newFixture(t)
	svc := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")
	ctx := context.Background()

	first, err := svc.AddDoctor(ctx, "dr.smith", AddDoctorInput{Name: "Dr. Amina El Idrissi", Specialty: "Pneumologue", Email: "a@example.org", Password: "pw"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.Username != "dr.amina.el.idrissi" || first.Ordinal != 1001 || !strings.HasPrefix(first.ID, "DR") {
		t.Fatalf("unexpected allocation %+v", first)
	}
	if !first.IsActive() || first.Admin() {
		t.Fatalf("new doctors are active non-admins: %+v", first)
	}
	if !strings.Contains(first.Signature, "1001") {
		t.Fatalf("expected ordinal in signature, got %q", first.Signature)
	}
	if err := auth.CheckPassword(first.PasswordHash, "pw"); err != nil {
		t.Fatalf("password not hashed correctly: %v", err)
	}

	if _, err := svc.AddDoctor(ctx, "dr.smith", AddDoctorInput{Name: "X", Specialty: "Y", Email: "x@example.org"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if _, err := svc.AddDoctor(ctx, "dr.smith", AddDoctorInput{Username: first.Username, Name: "X", Specialty: "Y", Email: "x@example.org", Password: "pw"}); !errors.Is(err, ErrDoctorExists) {
		t.Fatalf("expected ErrDoctorExists, got %v", err)
	}
}

func TestConcurrentAddsWithCollidingNames(t *testing.T) {
	f := newFixture(t)
	adminA := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")
	adminB := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")

	var wg sync.WaitGroup
	results := make([]types.Doctor, 2)
	errs := make([]error, 2)
	for i, svc := range []*AdminService{adminA, adminB} {
		wg.Add(1)
		go func(i int, svc *AdminService) {
			defer wg.Done()
			results[i], errs[i] = svc.AddDoctor(context.Background(), "admin", AddDoctorInput{
				Name: "Dr. Karim Benali", Specialty: "Pneumologue", Email: "k@example.org", Password: "pw",
			})
		}(i, svc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if results[0].Username == results[1].Username || results[0].ID == results[1].ID {
		t.Fatalf("colliding names must get distinct keys and ids: %+v / %+v", results[0], results[1])
	}
}

func TestResetPasswordByPublicID(t *testing.T) {
	f := newFixture(t)
	doctor := f.addDoctor(t, types.Doctor{Name: "Dr. Martin", Specialty: "Pneumologue", Email: "m@example.org"}, "old")
	svc := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")
	ctx := context.Background()

	_ = f.tokens.Put(ctx, types.ResetToken{Token: "pending", Username: doctor.Username, ExpiresAt: f.now.Add(time.Hour)})

	if _, err := svc.ResetPassword(ctx, "dr.smith", strings.ToLower(doctor.ID)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := NewAuthService(f.doctors, f.rec).Login(ctx, doctor.Username, "password123"); err != nil {
		t.Fatalf("login with default password: %v", err)
	}
	if _, err := f.tokens.Get(ctx, "pending"); err == nil {
		t.Fatal("admin reset must void pending reset tokens")
	}
	if _, err := svc.ResetPassword(ctx, "dr.smith", "dr.ghost"); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestDashboardAndPatientsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	martin := f.addDoctor(t, types.Doctor{Name: "Dr. Martin", Specialty: "Pneumologue", Email: "m@example.org"}, "pw")
	dupont := f.addDoctor(t, types.Doctor{Name: "Dr. Dupont", Specialty: "Généraliste", Email: "d@example.org"}, "pw")

	for i, d := range []types.Doctor{martin, dupont, martin} {
		record := types.DiagnosisRecord{
			ID:         string(rune('a' + i)),
			Diagnostic: types.Diagnostic{Disease: "Grippe"},
			Physician:  types.Physician{Username: d.Username, Name: d.Name},
		}
		if err := f.history.Append(ctx, record); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	svc := NewAdminService(f.doctors, f.history, f.activity, f.tokens, f.rec, "password123")
	dash, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dash.Stats.TotalDoctors != 2 || dash.Stats.ActiveDoctors != 2 || dash.Stats.TotalDiagnoses != 3 {
		t.Fatalf("unexpected stats %+v", dash.Stats)
	}
	if dash.Stats.DiagnosesByDisease["Grippe"] != 3 {
		t.Fatalf("unexpected per-disease stats %+v", dash.Stats.DiagnosesByDisease)
	}

	patients, err := svc.Patients(ctx, martin.ID)
	if err != nil {
		t.Fatalf("patients: %v", err)
	}
	if len(patients) != 2 || patients[0].ID != "c" {
		t.Fatalf("unexpected filtered history %+v", patients)
	}
}
