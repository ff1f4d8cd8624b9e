package services

import (
	"context"
	"errors"
	"strings"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

// AuthService checks physician credentials against the directory.
type AuthService struct {
	doctors DoctorRepository
	rec     *Recorder
}

func NewAuthService(doctors DoctorRepository, rec *Recorder) *AuthService {
	return &AuthService{doctors: doctors, rec: rec}
}

// Login returns the doctor for a valid username/password pair. An inactive
// account is rejected only once the password has been verified.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.Doctor, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.rec.Metrics().Login("invalid")
		return types.Doctor{}, ErrInvalidCredentials
	}

	doctor, err := s.doctors.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.rec.Metrics().Login("invalid")
			return types.Doctor{}, ErrInvalidCredentials
		}
		return types.Doctor{}, err
	}

	if err := auth.CheckPassword(doctor.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			s.rec.Logger().Warn().Err(err).Str("username", username).Msg("unverifiable password hash")
		}
		s.rec.Metrics().Login("invalid")
		return types.Doctor{}, ErrInvalidCredentials
	}

	if !doctor.IsActive() {
		s.rec.Metrics().Login("disabled")
		return types.Doctor{}, ErrAccountDisabled
	}

	s.rec.Metrics().Login("success")
	s.rec.Activity(ctx, KindLogin, doctor.Username, "Connexion de "+doctor.Name)
	s.rec.Publish(ctx, events.Event{Type: events.TypeDoctorLoggedIn, Actor: doctor.Username, Subject: doctor.Username})
	return doctor, nil
}

// Current returns the live directory record behind a session. It fails
// with ErrDoctorNotFound for an unknown key and ErrAccountDisabled for a
// deactivated account.
func (s *AuthService) Current(ctx context.Context, username string) (types.Doctor, error) {
	doctor, err := s.doctors.Get(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Doctor{}, ErrDoctorNotFound
		}
		return types.Doctor{}, err
	}
	if !doctor.IsActive() {
		return types.Doctor{}, ErrAccountDisabled
	}
	return doctor, nil
}

// Signature returns the report signature of a physician, active or not. It
// is empty for an unknown key.
func (s *AuthService) Signature(ctx context.Context, username string) string {
	doctor, err := s.doctors.Get(ctx, username)
	if err != nil {
		return ""
	}
	if strings.TrimSpace(doctor.Signature) == "" {
		return DefaultSignature(doctor)
	}
	return doctor.Signature
}
