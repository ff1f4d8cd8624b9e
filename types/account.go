package types

import "time"

// ResetToken is a pending password-reset grant. Tokens are single use and
// stop authorizing anything once ExpiresAt has passed.
type ResetToken struct {
	// Token is the opaque random value handed to the user. It is the
	// key of the persisted token map and is not repeated in the record.
	Token string `json:"-"`

	// Username is the storage key of the doctor the token was issued for.
	Username string `json:"username"`

	// ExpiresAt is the instant after which the token is void.
	ExpiresAt time.Time `json:"expires"`
}

// Expired reports whether the token is no longer usable at now.
func (t ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ActivityEntry is one line of the administrator's recent-activity feed.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Icon      string    `json:"icon"`
	Title     string    `json:"title"`
	Time      string    `json:"time"`
	Actor     string    `json:"actor,omitempty"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// HospitalService is an entry of the services catalog managed by
// administrators.
type HospitalService struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Flash is a one-shot user-visible notice carried by the session.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}
