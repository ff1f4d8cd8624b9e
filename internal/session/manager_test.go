package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/types"
)

func newTestManager(store Store) *Manager {
	return NewManager(store, config.SessionConfig{Secret: "test-secret", TTL: time.Hour})
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSaveThenLoad(t *testing.T) {
	m := newTestManager(NewMemoryStore())

	sess := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if sess.Authenticated() {
		t.Fatal("fresh session must be anonymous")
	}
	sess.SignIn(types.Doctor{Username: "dr.smith", Name: "Dr. Smith", Specialty: "Cardiologue", Role: "admin"})
	sess.AddFlash("success", "Connexion réussie")

	rec := httptest.NewRecorder()
	if err := m.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := m.Load(requestWithCookies(rec))
	if loaded.ID != sess.ID || loaded.DisplayName != "Dr. Smith" || !loaded.IsAdmin {
		t.Fatalf("unexpected session: %+v", loaded)
	}
	flashes := loaded.PopFlashes()
	if len(flashes) != 1 || flashes[0].Message != "Connexion réussie" {
		t.Fatalf("unexpected flashes: %+v", flashes)
	}
	if len(loaded.PopFlashes()) != 0 {
		t.Fatal("flashes must be popped once")
	}
}

func TestTamperedCookieYieldsFreshSession(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	sess := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	sess.SignIn(types.Doctor{Username: "dr.martin"})
	rec := httptest.NewRecorder()
	if err := m.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	other := NewManager(NewMemoryStore(), config.SessionConfig{Secret: "other-secret"})
	loaded := other.Load(requestWithCookies(rec))
	if loaded.Authenticated() || loaded.ID == sess.ID {
		t.Fatalf("cookie signed with another secret must be rejected: %+v", loaded)
	}
}

func TestExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	store.now = m.now

	sess := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	sess.SignIn(types.Doctor{Username: "dr.martin"})
	rec := httptest.NewRecorder()
	if err := m.Save(context.Background(), rec, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if loaded := m.Load(requestWithCookies(rec)); loaded.Authenticated() {
		t.Fatalf("expected expired session to be dropped: %+v", loaded)
	}
}

func TestDestroy(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)
	sess := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	sess.SignIn(types.Doctor{Username: "dr.martin"})
	rec := httptest.NewRecorder()
	_ = m.Save(context.Background(), rec, sess)

	replacement, err := m.Destroy(context.Background(), sess)
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if replacement.ID == sess.ID || replacement.Authenticated() {
		t.Fatalf("unexpected replacement: %+v", replacement)
	}
	if _, err := store.Get(context.Background(), sess.ID); err != ErrNotFound {
		t.Fatalf("expected session to be deleted, got %v", err)
	}
}
