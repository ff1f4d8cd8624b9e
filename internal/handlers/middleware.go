package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	msgLoginRequired   = "Vous devez être connecté pour accéder à cette page."
	msgAccountDisabled = "Compte désactivé. Contactez l'administrateur."
	msgForbidden       = "Accès non autorisé"
)

type doctorContextKey struct{}

func withDoctor(ctx context.Context, doctor types.Doctor) context.Context {
	return context.WithValue(ctx, doctorContextKey{}, doctor)
}

// doctorFromContext returns the doctor attached by RequireLogin.
func doctorFromContext(ctx context.Context) (types.Doctor, bool) {
	doctor, ok := ctx.Value(doctorContextKey{}).(types.Doctor)
	return doctor, ok
}

// RequestLogger attaches logger to every request context and logs one line
// per request once it completes. It must run after middleware.RequestID.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("latency", duration).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		logged := access(next)
		tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				log := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
				r = r.WithContext(log.WithContext(r.Context()))
			}
			logged.ServeHTTP(w, r)
		})
		return hlog.NewHandler(logger)(tagged)
	}
}

// Guards gate routes on the logged-in doctor. The doctor record is read once
// per request from the directory, which is the only source of the active and
// admin flags.
type Guards struct {
	auth *services.AuthService
	responder
}

func NewGuards(auth *services.AuthService, sessions *session.Manager) *Guards {
	return &Guards{auth: auth, responder: responder{sessions: sessions}}
}

// RequireLogin redirects anonymous visitors to the login page. A session
// whose doctor has been disabled or removed is logged out.
func (g *Guards) RequireLogin(next http.Handler) http.Handler {
	return g.requireLogin(next, func(w http.ResponseWriter, r *http.Request, message string) {
		g.redirect(w, r, flashError, message, "/login")
	})
}

// RequireLoginAPI is RequireLogin for JSON endpoints.
func (g *Guards) RequireLoginAPI(next http.Handler) http.Handler {
	return g.requireLogin(next, func(w http.ResponseWriter, r *http.Request, message string) {
		writeError(w, http.StatusUnauthorized, message)
	})
}

func (g *Guards) requireLogin(next http.Handler, deny func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		if !sess.Authenticated() {
			deny(w, r, msgLoginRequired)
			return
		}

		doctor, err := g.auth.Current(r.Context(), sess.Username)
		if err != nil {
			message := msgLoginRequired
			if errors.Is(err, services.ErrAccountDisabled) {
				message = msgAccountDisabled
			} else if !errors.Is(err, services.ErrDoctorNotFound) {
				zerolog.Ctx(r.Context()).Error().Err(err).Str("username", sess.Username).Msg("load session doctor")
			}
			fresh, derr := g.sessions.Destroy(r.Context(), sess)
			if derr != nil {
				zerolog.Ctx(r.Context()).Warn().Err(derr).Msg("destroy session")
			}
			*sess = *fresh
			deny(w, r, message)
			return
		}

		sess.SignIn(doctor)
		next.ServeHTTP(w, r.WithContext(withDoctor(r.Context(), doctor)))
	})
}

// RequireAdmin sends non-admins back to the index with a notice. It must run
// after RequireLogin.
func (g *Guards) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doctor, ok := doctorFromContext(r.Context())
		if !ok || !doctor.Admin() {
			g.redirect(w, r, flashError, msgForbidden, "/")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminAPI answers 403 to non-admins. It must run after
// RequireLoginAPI.
func (g *Guards) RequireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doctor, ok := doctorFromContext(r.Context())
		if !ok || !doctor.Admin() {
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
