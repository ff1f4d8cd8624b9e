package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	flashSuccess = "success"
	flashError   = "error"

	maxFormBytes = 1 << 20
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges a JSON action.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserView is the logged-in doctor as shown on every page.
type UserView struct {
	Username  string `json:"username"`
	Name      string `json:"nom_medecin"`
	Specialty string `json:"specialite"`
	IsAdmin   bool   `json:"is_admin"`
}

// PageResponse is the view-model of a page. Flashes are consumed by the
// request that renders them.
type PageResponse struct {
	Page    string        `json:"page"`
	Flashes []types.Flash `json:"flashes"`
	User    *UserView     `json:"user,omitempty"`
	Data    any           `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// currentSession returns the request session. Routes are mounted behind
// session.Manager.Middleware, so a nil session only happens in misconfigured
// tests.
func currentSession(r *http.Request) *session.Session {
	if sess := session.FromContext(r.Context()); sess != nil {
		return sess
	}
	return &session.Session{}
}

func userView(sess *session.Session) *UserView {
	if !sess.Authenticated() {
		return nil
	}
	return &UserView{
		Username:  sess.Username,
		Name:      sess.DisplayName,
		Specialty: sess.Specialty,
		IsAdmin:   sess.IsAdmin,
	}
}

// responder writes pages and redirects and keeps the session store in sync
// with what was shown.
type responder struct {
	sessions *session.Manager
}

// save stores sess when it carries anything worth keeping. Anonymous
// sessions without flashes are never stored.
func (rs responder) save(w http.ResponseWriter, r *http.Request, sess *session.Session, force bool) {
	if !force && !sess.Authenticated() && len(sess.Flashes) == 0 {
		return
	}
	if err := rs.sessions.Save(r.Context(), w, sess); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("save session")
	}
}

// page pops the pending flashes into a page view-model.
func (rs responder) page(w http.ResponseWriter, r *http.Request, name string, data any) {
	sess := currentSession(r)
	flashes := sess.PopFlashes()
	rs.save(w, r, sess, len(flashes) > 0)
	writeJSON(w, http.StatusOK, PageResponse{
		Page:    name,
		Flashes: flashes,
		User:    userView(sess),
		Data:    data,
	})
}

// redirect adds a flash and answers 303 See Other.
func (rs responder) redirect(w http.ResponseWriter, r *http.Request, category, message, target string) {
	sess := currentSession(r)
	if message != "" {
		sess.AddFlash(category, message)
	}
	rs.save(w, r, sess, false)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// formFields parses a form-encoded or multipart body into single values.
func formFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

// jsonOrForm decodes a JSON body into dst, or falls back to form values read
// through fromForm.
func jsonOrForm(w http.ResponseWriter, r *http.Request, dst any, fromForm func(map[string]string)) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(dst)
	}
	fields, err := formFields(w, r)
	if err != nil {
		return err
	}
	fromForm(fields)
	return nil
}
