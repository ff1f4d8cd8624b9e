package services

import (
	"context"
	"testing"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/types"
)

func TestSeedDoctorsOnlyWhenEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := SeedDoctors(ctx, f.doctors, "password123")
	if err != nil || n != 6 {
		t.Fatalf("expected 6 seeded doctors, got %d, %v", n, err)
	}
	smith, err := f.doctors.Get(ctx, "dr.smith")
	if err != nil || !smith.Admin() {
		t.Fatalf("expected dr.smith to be an admin: %+v, %v", smith, err)
	}
	if n, _ := SeedDoctors(ctx, f.doctors, "password123"); n != 0 {
		t.Fatalf("second seed must be a no-op, got %d", n)
	}
}

func TestHashPlaintextPasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.doctors.Create(ctx, types.Doctor{Username: "dr.plain", Name: "Dr. Plain", PasswordHash: "secret"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	hashed, _ := auth.HashPassword("kept")
	if _, err := f.doctors.Create(ctx, types.Doctor{Username: "dr.hashed", Name: "Dr. Hashed", PasswordHash: hashed}); err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := HashPlaintextPasswords(ctx, f.doctors)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(changed) != 1 || changed[0] != "dr.plain" {
		t.Fatalf("unexpected changes %v", changed)
	}
	plain, _ := f.doctors.Get(ctx, "dr.plain")
	if err := auth.CheckPassword(plain.PasswordHash, "secret"); err != nil {
		t.Fatalf("migrated password does not verify: %v", err)
	}
}
