package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
)

const (
	msgLoginSuccess      = "Connexion réussie"
	msgLoginFailed       = "Nom d'utilisateur ou mot de passe incorrect"
	msgLoggedOut         = "Vous avez été déconnecté"
	msgResetRequested    = "Un lien de réinitialisation a été généré."
	msgResetRejected     = "Nom d'utilisateur ou email incorrect"
	msgResetInvalid      = "Lien de réinitialisation invalide ou expiré"
	msgResetMismatch     = "Les mots de passe ne correspondent pas"
	msgResetMissing      = "Tous les champs sont requis"
	msgResetDone         = "Votre mot de passe a été réinitialisé. Vous pouvez vous connecter."
	msgUnexpectedFailure = "Une erreur inattendue s'est produite"
)

// AuthHandler serves login, logout and self-service password recovery.
type AuthHandler struct {
	auth             *services.AuthService
	resets           *services.PasswordResetService
	exposeResetLinks bool
	responder
}

func NewAuthHandler(
	auth *services.AuthService,
	resets *services.PasswordResetService,
	sessions *session.Manager,
	exposeResetLinks bool,
) *AuthHandler {
	return &AuthHandler{
		auth:             auth,
		resets:           resets,
		exposeResetLinks: exposeResetLinks,
		responder:        responder{sessions: sessions},
	}
}

// AuthRouter registers the public account routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Get("/login", handler.LoginPage)
	r.Post("/login", handler.Login)
	r.Get("/logout", handler.Logout)
	r.Get("/forgot-password", handler.ForgotPasswordPage)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Get("/reset-password/{token}", handler.ResetPasswordPage)
	r.Post("/reset-password/{token}", handler.ResetPassword)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "login", nil)
}

// Login signs the doctor into the current session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgLoginFailed, "/login")
		return
	}

	doctor, err := h.auth.Login(r.Context(), fields["username"], fields["password"])
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountDisabled):
			h.redirect(w, r, flashError, msgAccountDisabled, "/login")
		case errors.Is(err, services.ErrInvalidCredentials):
			h.redirect(w, r, flashError, msgLoginFailed, "/login")
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("login")
			h.redirect(w, r, flashError, msgUnexpectedFailure, "/login")
		}
		return
	}

	sess := currentSession(r)
	fresh, err := h.sessions.Destroy(r.Context(), sess)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rotate session")
	}
	*sess = *fresh
	sess.SignIn(doctor)
	h.redirect(w, r, flashSuccess, msgLoginSuccess, "/")
}

// Logout clears the session unconditionally.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	fresh, err := h.sessions.Destroy(r.Context(), sess)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("destroy session")
	}
	*sess = *fresh
	h.redirect(w, r, flashSuccess, msgLoggedOut, "/login")
}

func (h *AuthHandler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "forgot_password", nil)
}

// ForgotPasswordResponse is returned in place of an email when reset links
// are exposed, in development.
type ForgotPasswordResponse struct {
	ResetURL string `json:"reset_url"`
}

// ForgotPassword issues a reset token. Every failure shows the same notice.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgResetRejected, "/forgot-password")
		return
	}

	token, err := h.resets.Request(r.Context(), fields["username"], fields["email"])
	if err != nil {
		if !errors.Is(err, services.ErrResetRequestRejected) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("request password reset")
		}
		h.redirect(w, r, flashError, msgResetRejected, "/forgot-password")
		return
	}

	resetURL := "/reset-password/" + url.PathEscape(token.Token)
	zerolog.Ctx(r.Context()).Info().
		Str("username", token.Username).
		Time("expires", token.ExpiresAt).
		Msg("password reset requested")

	if h.exposeResetLinks {
		sess := currentSession(r)
		sess.AddFlash(flashSuccess, msgResetRequested)
		flashes := sess.PopFlashes()
		h.save(w, r, sess, false)
		writeJSON(w, http.StatusOK, PageResponse{
			Page:    "forgot_password",
			Flashes: flashes,
			User:    userView(sess),
			Data:    ForgotPasswordResponse{ResetURL: resetURL},
		})
		return
	}
	h.redirect(w, r, flashSuccess, msgResetRequested, "/login")
}

// ResetPasswordPage shows the new-password form for a live token.
func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := h.resets.Validate(r.Context(), token); err != nil {
		h.resetFailed(w, r, err)
		return
	}
	h.page(w, r, "reset_password", map[string]string{"token": token})
}

// ResetPassword consumes the token and sets the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgResetMissing, r.URL.Path)
		return
	}

	password := fields["password"]
	confirm, ok := fields["confirm_password"]
	if !ok {
		confirm = fields["confirm"]
	}
	if strings.TrimSpace(password) == "" {
		h.redirect(w, r, flashError, msgResetMissing, r.URL.Path)
		return
	}

	if err := h.resets.Reset(r.Context(), token, password, confirm); err != nil {
		switch {
		case errors.Is(err, services.ErrPasswordMismatch):
			h.redirect(w, r, flashError, msgResetMismatch, r.URL.Path)
		case errors.Is(err, services.ErrInvalidInput):
			h.redirect(w, r, flashError, msgResetMissing, r.URL.Path)
		default:
			h.resetFailed(w, r, err)
		}
		return
	}
	h.redirect(w, r, flashSuccess, msgResetDone, "/login")
}

func (h *AuthHandler) resetFailed(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, services.ErrInvalidResetToken) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("password reset")
	}
	h.redirect(w, r, flashError, msgResetInvalid, "/forgot-password")
}
