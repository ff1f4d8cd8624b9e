// Package events publishes domain events (diagnoses, logins, admin actions)
// to the configured message broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/diagnoclinic/apiserver/internal/mq"
)

const (
	TypeDiagnosisCreated  = "diagnosis.created"
	TypeDoctorLoggedIn    = "doctor.logged_in"
	TypeDoctorCreated     = "doctor.created"
	TypeDoctorToggled     = "doctor.status_toggled"
	TypePasswordReset     = "doctor.password_reset"
	TypePasswordRecovered = "doctor.password_recovered"
	TypeServiceAdded      = "service.added"
	TypeServiceDeleted    = "service.deleted"
	TypeServicesReloaded  = "service.reloaded"
	TypeReportExported    = "report.exported"
)

// Event is the envelope written to the broker.
type Event struct {
	Type    string    `json:"type"`
	Actor   string    `json:"actor,omitempty"`
	Subject string    `json:"subject,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher writes events to one channel. A nil *Publisher discards
// everything, so callers never need to check whether a broker is configured.
type Publisher struct {
	mq      *mq.MQ
	channel string
	now     func() time.Time
}

func NewPublisher(queue *mq.MQ, channel string) *Publisher {
	if queue == nil {
		return nil
	}
	return &Publisher{mq: queue, channel: channel, now: time.Now}
}

// Publish encodes event as JSON and sends it. A zero At is set to now.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = p.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		"type":             event.Type,
		mq.AttrContentType: "application/json",
	})
	return err
}

// Watch decodes every event on the channel and hands it to fn until ctx is
// done.
func (p *Publisher) Watch(ctx context.Context, fn func(context.Context, Event) error) error {
	return p.mq.Subscribe(ctx, p.channel, func(ctx context.Context, msg mq.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return err
		}
		return fn(ctx, event)
	})
}

// Ping checks the broker connection.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.mq.Ping(ctx)
}

// Close closes the underlying broker connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.mq.Close()
}
