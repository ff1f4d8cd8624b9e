package services

import (
	"context"
	"time"

	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/types"
)

// DoctorRepository defines persistence operations for the physician
// directory.
type DoctorRepository interface {
	List(ctx context.Context) ([]types.Doctor, error)
	Get(ctx context.Context, username string) (types.Doctor, error)
	Resolve(ctx context.Context, keyOrID string) (types.Doctor, error)
	Create(ctx context.Context, doctor types.Doctor) (types.Doctor, error)
	Update(ctx context.Context, doctor types.Doctor) (types.Doctor, error)
}

// HistoryRepository stores diagnosis records, most recent first.
type HistoryRepository interface {
	Append(ctx context.Context, record types.DiagnosisRecord) error
	List(ctx context.Context, limit int) ([]types.DiagnosisRecord, error)
	Get(ctx context.Context, id string) (types.DiagnosisRecord, error)
	Count(ctx context.Context) (int, error)
}

type ResetTokenRepository interface {
	Put(ctx context.Context, token types.ResetToken) error
	Get(ctx context.Context, token string) (types.ResetToken, error)
	Consume(ctx context.Context, token string, now time.Time) (types.ResetToken, error)
	DeleteByUsername(ctx context.Context, username string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type ActivityRepository interface {
	Append(ctx context.Context, entry types.ActivityEntry) error
	Recent(ctx context.Context, limit int) ([]types.ActivityEntry, error)
}

type ServiceRepository interface {
	List(ctx context.Context) ([]types.HospitalService, error)
	Add(ctx context.Context, service types.HospitalService) error
	Delete(ctx context.Context, id string) error
	Replace(ctx context.Context, services []types.HospitalService) error
}

// EventPublisher sends domain events. *events.Publisher satisfies it, nil
// included.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
