package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/diagnoclinic/apiserver/config"
)

const (
	defaultCookieName = "diag_session"
	defaultTTL        = 12 * time.Hour
	tokenIssuer       = "diagserver"
)

// Manager binds sessions to requests through a signed cookie.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

func NewManager(store Store, cfg config.SessionConfig) *Manager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = defaultCookieName
	}
	return &Manager{
		store:  store,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		cookie: name,
		secure: cfg.CookieSecure,
		now:    time.Now,
	}
}

// Load returns the session named by the request cookie. A missing, tampered
// or expired cookie yields a fresh anonymous session that is not stored
// until Save.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookie)
	if err != nil {
		return m.fresh()
	}
	id, err := m.parseToken(cookie.Value)
	if err != nil {
		return m.fresh()
	}
	sess, err := m.store.Get(r.Context(), id)
	if err != nil {
		return m.fresh()
	}
	return sess
}

// Save stores sess and refreshes the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if err := m.store.Set(ctx, sess, m.ttl); err != nil {
		return err
	}
	token, err := m.issueToken(sess.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy removes sess from the store and returns an empty replacement with
// a new ID. The caller saves the replacement if it carries anything.
func (m *Manager) Destroy(ctx context.Context, sess *Session) (*Session, error) {
	if sess != nil && sess.ID != "" {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return m.fresh(), err
		}
	}
	return m.fresh(), nil
}

// Middleware loads the session into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.Load(r)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func (m *Manager) fresh() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: m.now().UTC()}
}

func (m *Manager) issueToken(id string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) parseToken(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
