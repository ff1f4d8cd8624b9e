package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	resetTokenBytes   = 32
	defaultResetTTL   = 15 * time.Minute
	minPasswordLength = 1
)

// PasswordResetService implements self-service password recovery:
// a token is issued on a matching username and email, then consumed once
// before it expires.
type PasswordResetService struct {
	doctors DoctorRepository
	tokens  ResetTokenRepository
	rec     *Recorder
	ttl     time.Duration
}

func NewPasswordResetService(doctors DoctorRepository, tokens ResetTokenRepository, rec *Recorder, ttl time.Duration) *PasswordResetService {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	return &PasswordResetService{doctors: doctors, tokens: tokens, rec: rec, ttl: ttl}
}

// Request issues a token for the doctor named by key or public ID when
// email matches the one on file. Every mismatch yields the same
// ErrResetRequestRejected.
func (s *PasswordResetService) Request(ctx context.Context, usernameOrID, email string) (types.ResetToken, error) {
	email = strings.TrimSpace(email)
	if strings.TrimSpace(usernameOrID) == "" || email == "" {
		return types.ResetToken{}, ErrResetRequestRejected
	}

	doctor, err := s.doctors.Resolve(ctx, usernameOrID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ResetToken{}, ErrResetRequestRejected
		}
		return types.ResetToken{}, err
	}
	if doctor.Email == "" || !strings.EqualFold(strings.TrimSpace(doctor.Email), email) {
		return types.ResetToken{}, ErrResetRequestRejected
	}

	value, err := newResetToken()
	if err != nil {
		return types.ResetToken{}, err
	}
	token := types.ResetToken{
		Token:     value,
		Username:  doctor.Username,
		ExpiresAt: s.rec.Now().Add(s.ttl),
	}
	if err := s.tokens.Put(ctx, token); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			return types.ResetToken{}, err
		}
		s.rec.PersistFailed("reset_tokens", err)
	}
	return token, nil
}

// Validate returns the username a live token was issued for. Expired tokens
// are reaped on the way.
func (s *PasswordResetService) Validate(ctx context.Context, token string) (string, error) {
	if _, err := s.tokens.DeleteExpired(ctx, s.rec.Now()); err != nil {
		s.rec.PersistFailed("reset_tokens", err)
	}

	rec, err := s.tokens.Get(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidResetToken
		}
		return "", err
	}
	if rec.Expired(s.rec.Now()) {
		return "", ErrInvalidResetToken
	}
	return rec.Username, nil
}

// Reset consumes token and sets the new password. The token is redeemed
// before the password is written, so concurrent submissions of one token
// succeed at most once.
func (s *PasswordResetService) Reset(ctx context.Context, token, password, confirm string) error {
	token = strings.TrimSpace(token)
	if _, err := s.Validate(ctx, token); err != nil {
		return err
	}
	if len(password) < minPasswordLength || strings.TrimSpace(password) == "" {
		return ErrInvalidInput
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	rec, err := s.tokens.Consume(ctx, token, s.rec.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return ErrInvalidResetToken
		case errors.Is(err, store.ErrPersistence):
			s.rec.PersistFailed("reset_tokens", err)
		default:
			return err
		}
	}

	doctor, err := s.doctors.Get(ctx, rec.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	doctor.PasswordHash = hashed
	if _, err := s.doctors.Update(ctx, doctor); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			return err
		}
		s.rec.PersistFailed("doctors", err)
	}

	s.rec.Activity(ctx, KindPassword, doctor.Username, "Mot de passe modifié par "+doctor.Name)
	s.rec.Publish(ctx, events.Event{Type: events.TypePasswordRecovered, Actor: doctor.Username, Subject: doctor.Username})
	return nil
}

func newResetToken() (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
