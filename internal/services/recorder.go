package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/events"
	"github.com/diagnoclinic/apiserver/internal/metrics"
	"github.com/diagnoclinic/apiserver/internal/store"
	"github.com/diagnoclinic/apiserver/types"
)

const activityTimeLayout = "02/01/2006 15:04"

// Activity kinds and the icon shown next to them on the dashboard.
const (
	KindLogin     = "login"
	KindDiagnosis = "diagnosis"
	KindDoctor    = "doctor"
	KindPassword  = "password"
	KindService   = "service"
)

var activityIcons = map[string]string{
	KindLogin:     "🔑",
	KindDiagnosis: "🩺",
	KindDoctor:    "👨‍⚕️",
	KindPassword:  "🔒",
	KindService:   "🏥",
}

// Recorder carries the best-effort side effects shared by the services:
// the activity log, domain events, metrics and warnings about failed
// writes. None of them can fail the operation that triggered them.
type Recorder struct {
	activity ActivityRepository
	events   EventPublisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewRecorder(activity ActivityRepository, publisher EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *Recorder {
	return &Recorder{
		activity: activity,
		events:   publisher,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Now returns the current time of the recorder's clock.
func (r *Recorder) Now() time.Time {
	return r.now()
}

// Activity appends an entry to the recent-activity log.
func (r *Recorder) Activity(ctx context.Context, kind, actor, title string) {
	if r.activity == nil {
		return
	}
	now := r.now()
	entry := types.ActivityEntry{
		ID:        uuid.NewString(),
		Icon:      activityIcons[kind],
		Title:     title,
		Time:      now.Format(activityTimeLayout),
		Actor:     actor,
		Kind:      kind,
		Timestamp: now.UTC(),
	}
	if entry.Icon == "" {
		entry.Icon = "ℹ️"
	}
	if err := r.activity.Append(ctx, entry); err != nil {
		r.PersistFailed("activity", err)
	}
}

// Publish sends event and logs a failure.
func (r *Recorder) Publish(ctx context.Context, event events.Event) {
	if r.events == nil {
		return
	}
	if event.At.IsZero() {
		event.At = r.now().UTC()
	}
	if err := r.events.Publish(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("event", event.Type).Msg("event publish failed")
	}
}

// PersistFailed logs a failed write. The in-memory state stays
// authoritative.
func (r *Recorder) PersistFailed(collection string, err error) {
	r.metrics.PersistenceError(collection)
	ev := r.logger.Warn().Err(err).Str("collection", collection)
	if !errors.Is(err, store.ErrPersistence) {
		ev = r.logger.Error().Err(err).Str("collection", collection)
	}
	ev.Msg("persisting collection failed")
}

func (r *Recorder) Metrics() *metrics.Metrics {
	return r.metrics
}

func (r *Recorder) Logger() *zerolog.Logger {
	return &r.logger
}
