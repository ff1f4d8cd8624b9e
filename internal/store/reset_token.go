package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/diagnoclinic/apiserver/types"
)

// isoLayouts are accepted when reading expiry strings. Files written by
// older deployments carry naive local timestamps without an offset.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type tokenRecord struct {
	Username string `json:"username"`
	Expires  string `json:"expires"`
}

// ResetTokenRepository holds pending password-reset tokens in memory and
// mirrors them to a JSON map of token → {username, expires}.
type ResetTokenRepository struct {
	mu     sync.Mutex
	path   string
	tokens map[string]types.ResetToken
}

func OpenResetTokenRepository(path string) (*ResetTokenRepository, error) {
	raw := map[string]tokenRecord{}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	tokens := make(map[string]types.ResetToken, len(raw))
	for token, rec := range raw {
		expires, err := parseISOTime(rec.Expires)
		if err != nil {
			// An unreadable expiry can never be honoured.
			continue
		}
		tokens[token] = types.ResetToken{Token: token, Username: rec.Username, ExpiresAt: expires}
	}
	return &ResetTokenRepository{path: path, tokens: tokens}, nil
}

func (r *ResetTokenRepository) Put(ctx context.Context, token types.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token.Token] = token
	return r.saveLocked()
}

func (r *ResetTokenRepository) Get(ctx context.Context, token string) (types.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[token]
	if !ok {
		return types.ResetToken{}, ErrNotFound
	}
	return rec, nil
}

// Consume removes token and returns it in one step, so a token can be
// redeemed once. Missing and expired tokens yield ErrNotFound; an expired
// token is dropped as well. A failed file write is returned as
// ErrPersistence together with the consumed token.
func (r *ResetTokenRepository) Consume(ctx context.Context, token string, now time.Time) (types.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[token]
	if !ok {
		return types.ResetToken{}, ErrNotFound
	}
	delete(r.tokens, token)
	if rec.Expired(now) {
		_ = r.saveLocked()
		return types.ResetToken{}, ErrNotFound
	}
	return rec, r.saveLocked()
}

// DeleteByUsername drops every token issued for username.
func (r *ResetTokenRepository) DeleteByUsername(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, rec := range r.tokens {
		if rec.Username == username {
			delete(r.tokens, token)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	return r.saveLocked()
}

// DeleteExpired reaps every token whose expiry is not after now.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for token, rec := range r.tokens {
		if rec.Expired(now) {
			delete(r.tokens, token)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, r.saveLocked()
}

func (r *ResetTokenRepository) saveLocked() error {
	raw := make(map[string]tokenRecord, len(r.tokens))
	for token, rec := range r.tokens {
		raw[token] = tokenRecord{
			Username: rec.Username,
			Expires:  rec.ExpiresAt.Format(time.RFC3339),
		}
	}
	return persistErr(writeJSON(r.path, raw))
}

func parseISOTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 time %q", value)
}
