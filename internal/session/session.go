// Package session keeps server-side login sessions. The browser only holds a
// signed cookie naming the session; identity and flash messages live in a
// Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/diagnoclinic/apiserver/types"
)

// ErrNotFound is returned by a Store for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is the state attached to one browser.
type Session struct {
	ID          string        `json:"id"`
	Username    string        `json:"username,omitempty"`
	DisplayName string        `json:"nom_medecin,omitempty"`
	Specialty   string        `json:"specialite,omitempty"`
	IsAdmin     bool          `json:"is_admin,omitempty"`
	Flashes     []types.Flash `json:"flashes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Authenticated reports whether a doctor is logged in.
func (s *Session) Authenticated() bool {
	return s != nil && s.Username != ""
}

// SignIn attaches doctor to the session.
func (s *Session) SignIn(doctor types.Doctor) {
	s.Username = doctor.Username
	s.DisplayName = doctor.Name
	s.Specialty = doctor.Specialty
	s.IsAdmin = doctor.Admin()
}

func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, types.Flash{Category: category, Message: message})
}

// PopFlashes returns the pending flashes and forgets them.
func (s *Session) PopFlashes() []types.Flash {
	flashes := s.Flashes
	s.Flashes = nil
	if flashes == nil {
		flashes = []types.Flash{}
	}
	return flashes
}

// Store persists sessions with a time-to-live.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, sess *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(contextKey{}).(*Session)
	return sess
}
