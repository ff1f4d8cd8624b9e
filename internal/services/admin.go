package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diagnoclinic/apiserver/internal/auth"
	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	dashboardRecentPatients = 10
	dashboardRecentActivity = 10
)

// AddDoctorInput is the admin form for a new physician. Username is
// optional; when empty it is derived from Name.
type AddDoctorInput struct {
	Username  string
	Name      string
	Specialty string
	Email     string
	Password  string
	Signature string
	IsAdmin   bool
}

// DashboardStats summarizes the directory and the history.
type DashboardStats struct {
	TotalDoctors       int            `json:"total_doctors"`
	ActiveDoctors      int            `json:"active_doctors"`
	TotalDiagnoses     int            `json:"total_diagnoses"`
	DiagnosesByDisease map[string]int `json:"diagnoses_by_disease"`
}

// Dashboard is the admin landing page model.
type Dashboard struct {
	Doctors        []types.DoctorView      `json:"doctors"`
	Stats          DashboardStats          `json:"stats"`
	RecentPatients []types.DiagnosisRecord `json:"recent_patients"`
	RecentActivity []types.ActivityEntry   `json:"recent_activity"`
}

// AdminService implements the physician management operations.
type AdminService struct {
	doctors       DoctorRepository
	history       HistoryRepository
	activity      ActivityRepository
	tokens        ResetTokenRepository
	rec           *Recorder
	resetPassword string
}

func NewAdminService(
	doctors DoctorRepository,
	history HistoryRepository,
	activity ActivityRepository,
	tokens ResetTokenRepository,
	rec *Recorder,
	defaultResetPassword string,
) *AdminService {
	return &AdminService{
		doctors:       doctors,
		history:       history,
		activity:      activity,
		tokens:        tokens,
		rec:           rec,
		resetPassword: defaultResetPassword,
	}
}

// AddDoctor creates an active, non-admin account unless IsAdmin is set.
// Key, public ID and ordinal number are allocated by the directory.
func (s *AdminService) AddDoctor(ctx context.Context, actor string, in AddDoctorInput) (types.Doctor, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Specialty = strings.TrimSpace(in.Specialty)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Specialty == "" || in.Email == "" || in.Password == "" {
		return types.Doctor{}, ErrMissingFields
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.Doctor{}, err
	}

	doctor := types.Doctor{
		Username:     in.Username,
		PasswordHash: hashed,
		Name:         in.Name,
		Specialty:    in.Specialty,
		Email:        in.Email,
		IsAdmin:      in.IsAdmin,
		Signature:    strings.TrimSpace(in.Signature),
		CreatedAt:    s.rec.Now().UTC().Format(time.RFC3339),
	}
	if in.IsAdmin {
		doctor.Role = types.RoleAdmin
	}
	doctor.SetActive(true)

	created, err := s.doctors.Create(ctx, doctor)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.Doctor{}, ErrDoctorExists
		case errors.Is(err, store.ErrPersistence):
			s.rec.PersistFailed("doctors", err)
		default:
			return types.Doctor{}, err
		}
	}

	if created.Signature == "" {
		created.Signature = DefaultSignature(created)
		if created, err = s.doctors.Update(ctx, created); err != nil {
			if !errors.Is(err, store.ErrPersistence) {
				return types.Doctor{}, err
			}
			s.rec.PersistFailed("doctors", err)
		}
	}

	s.rec.Activity(ctx, KindDoctor, actor, fmt.Sprintf("Nouveau médecin ajouté: %s (%s)", created.Name, created.ID))
	s.rec.Publish(ctx, events.Event{
		Type:    events.TypeDoctorCreated,
		Actor:   actor,
		Subject: created.Username,
		Payload: created.View(),
	})
	return created, nil
}

// DefaultSignature is the text block printed under reports.
func DefaultSignature(d types.Doctor) string {
	return fmt.Sprintf("%s\n%s\nN° d'ordre: %d", d.Name, d.Specialty, d.Ordinal)
}

// ToggleStatus flips the active flag of the doctor named by key or public
// ID.
func (s *AdminService) ToggleStatus(ctx context.Context, actor, keyOrID string) (types.Doctor, error) {
	doctor, err := s.resolve(ctx, keyOrID)
	if err != nil {
		return types.Doctor{}, err
	}
	doctor.SetActive(!doctor.IsActive())

	updated, err := s.save(ctx, doctor)
	if err != nil {
		return types.Doctor{}, err
	}

	state := "désactivé"
	if updated.IsActive() {
		state = "activé"
	}
	s.rec.Activity(ctx, KindDoctor, actor, fmt.Sprintf("Compte de %s %s", updated.Name, state))
	s.rec.Publish(ctx, events.Event{
		Type:    events.TypeDoctorToggled,
		Actor:   actor,
		Subject: updated.Username,
		Payload: map[string]bool{"is_active": updated.IsActive()},
	})
	return updated, nil
}

// ResetPassword sets the default password and voids pending reset tokens.
func (s *AdminService) ResetPassword(ctx context.Context, actor, keyOrID string) (types.Doctor, error) {
	doctor, err := s.resolve(ctx, keyOrID)
	if err != nil {
		return types.Doctor{}, err
	}
	hashed, err := auth.HashPassword(s.resetPassword)
	if err != nil {
		return types.Doctor{}, err
	}
	doctor.PasswordHash = hashed

	updated, err := s.save(ctx, doctor)
	if err != nil {
		return types.Doctor{}, err
	}
	if s.tokens != nil {
		if err := s.tokens.DeleteByUsername(ctx, updated.Username); err != nil {
			s.rec.PersistFailed("reset_tokens", err)
		}
	}

	s.rec.Activity(ctx, KindPassword, actor, "Mot de passe réinitialisé pour "+updated.Name)
	s.rec.Publish(ctx, events.Event{Type: events.TypePasswordReset, Actor: actor, Subject: updated.Username})
	return updated, nil
}

func (s *AdminService) Dashboard(ctx context.Context) (Dashboard, error) {
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	history, err := s.history.List(ctx, 0)
	if err != nil {
		return Dashboard{}, err
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	activity, err := s.RecentActivity(ctx, dashboardRecentActivity)
	if err != nil {
		return Dashboard{}, err
	}

	dash := Dashboard{
		Doctors:        make([]types.DoctorView, 0, len(doctors)),
		RecentActivity: activity,
		Stats: DashboardStats{
			TotalDoctors:       len(doctors),
			TotalDiagnoses:     total,
			DiagnosesByDisease: map[string]int{},
		},
	}
	for _, d := range doctors {
		dash.Doctors = append(dash.Doctors, d.View())
		if d.IsActive() {
			dash.Stats.ActiveDoctors++
		}
	}
	for _, record := range history {
		dash.Stats.DiagnosesByDisease[record.Diagnostic.Disease]++
	}
	recent := history
	if len(recent) > dashboardRecentPatients {
		recent = recent[:dashboardRecentPatients]
	}
	dash.RecentPatients = recent
	return dash, nil
}

// Patients returns the history, optionally restricted to one physician
// matched by key, public ID or display name.
func (s *AdminService) Patients(ctx context.Context, doctorFilter string) ([]types.DiagnosisRecord, error) {
	records, err := s.history.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	doctorFilter = strings.TrimSpace(doctorFilter)
	if doctorFilter == "" {
		return records, nil
	}

	username := doctorFilter
	name := doctorFilter
	if doctor, err := s.doctors.Resolve(ctx, doctorFilter); err == nil {
		username = doctor.Username
		name = doctor.Name
	}

	filtered := make([]types.DiagnosisRecord, 0, len(records))
	for _, record := range records {
		if record.Physician.Username == username || strings.EqualFold(record.Physician.Name, name) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

func (s *AdminService) RecentActivity(ctx context.Context, limit int) ([]types.ActivityEntry, error) {
	if s.activity == nil {
		return []types.ActivityEntry{}, nil
	}
	entries, err := s.activity.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

func (s *AdminService) resolve(ctx context.Context, keyOrID string) (types.Doctor, error) {
	doctor, err := s.doctors.Resolve(ctx, keyOrID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Doctor{}, ErrDoctorNotFound
		}
		return types.Doctor{}, err
	}
	return doctor, nil
}

func (s *AdminService) save(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	updated, err := s.doctors.Update(ctx, doctor)
	if err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			return types.Doctor{}, err
		}
		s.rec.PersistFailed("doctors", err)
	}
	return updated, nil
}
