package services

import (
	"context"
	"errors"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

var defaultDoctors = []types.Doctor{
	{Username: "dr.smith", Name: "Dr. Smith", Specialty: "Cardiologue", IsAdmin: true, Role: types.RoleAdmin},
	{Username: "dr.martin", Name: "Dr. Martin", Specialty: "Pneumologue"},
	{Username: "dr.bernard", Name: "Dr. Bernard", Specialty: "Médecin Généraliste"},
	{Username: "dr.moreau", Name: "Dr. Moreau", Specialty: "Pneumologue"},
	{Username: "dr.lefevre", Name: "Dr. Lefevre", Specialty: "Cardiologue"},
	{Username: "dr.dupont", Name: "Dr. Dupont", Specialty: "Généraliste"},
}

// SeedDoctors fills an empty directory with the demo accounts, all sharing
// password. It does nothing when at least one doctor exists.
func SeedDoctors(ctx context.Context, doctors DoctorRepository, password string) (int, error) {
	existing, err := doctors.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	seeded := 0
	for _, doctor := range defaultDoctors {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return seeded, err
		}
		doctor.PasswordHash = hashed
		doctor.SetActive(true)
		created, err := doctors.Create(ctx, doctor)
		if err != nil && !errors.Is(err, store.ErrPersistence) {
			return seeded, err
		}
		if created.Signature == "" {
			created.Signature = DefaultSignature(created)
			if _, err := doctors.Update(ctx, created); err != nil && !errors.Is(err, store.ErrPersistence) {
				return seeded, err
			}
		}
		seeded++
	}
	return seeded, nil
}

// HashPlaintextPasswords rewrites every password that is not a recognized
// hash as a bcrypt hash. It returns the usernames that changed.
func HashPlaintextPasswords(ctx context.Context, doctors DoctorRepository) ([]string, error) {
	all, err := doctors.List(ctx)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, doctor := range all {
		if doctor.PasswordHash == "" || auth.IsHashed(doctor.PasswordHash) {
			continue
		}
		hashed, err := auth.HashPassword(doctor.PasswordHash)
		if err != nil {
			return changed, err
		}
		doctor.PasswordHash = hashed
		if _, err := doctors.Update(ctx, doctor); err != nil {
			return changed, err
		}
		changed = append(changed, doctor.Username)
	}
	return changed, nil
}
