package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	msgDoctorAdded       = "Médecin ajouté avec succès"
	msgDoctorExists      = "Ce nom d'utilisateur existe déjà"
	msgFieldsRequired    = "Tous les champs sont requis"
	msgDoctorMissing     = "Médecin introuvable"
	msgDashboardFailed   = "Erreur lors du chargement du tableau de bord"
	msgServiceExists     = "Ce service existe déjà"
	msgServiceMissing    = "Service introuvable"
	msgServiceNameNeeded = "Le nom du service est requis"

	defaultActivityLimit = 10
	maxActivityLimit     = 200
)

// AdminHandler serves the administration pages and their JSON helpers.
type AdminHandler struct {
	admin   *services.AdminService
	catalog *services.CatalogService
	responder
}

func NewAdminHandler(admin *services.AdminService, catalog *services.CatalogService, sessions *session.Manager) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		catalog:   catalog,
		responder: responder{sessions: sessions},
	}
}

// AdminRouter registers the admin routes. Pages and form actions redirect
// non-admins with a notice; JSON endpoints answer 401/403.
func AdminRouter(r chi.Router, handler *AdminHandler, guards *Guards) {
	r.Group(func(r chi.Router) {
		r.Use(guards.RequireLogin, guards.RequireAdmin)
		r.Get("/admin", handler.Dashboard)
		r.Get("/admin/patients", handler.Patients)
		r.Post("/admin/toggle-status", handler.ToggleStatus)
		r.Post("/admin/add-doctor", handler.AddDoctor)
		r.Post("/admin/reset-password", handler.ResetPassword)
	})
	r.Group(func(r chi.Router) {
		r.Use(guards.RequireLoginAPI, guards.RequireAdminAPI)
		r.Get("/api/admin/recent-activity", handler.RecentActivity)
		r.Get("/api/admin/services", handler.ListServices)
		r.Post("/admin/add-service", handler.AddService)
		r.Post("/admin/delete-service", handler.DeleteService)
		r.Post("/admin/reload-services-from-mapping", handler.ReloadServices)
	})
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.admin.Dashboard(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("admin dashboard")
		h.redirect(w, r, flashError, msgDashboardFailed, "/")
		return
	}
	h.page(w, r, "admin_dashboard", dash)
}

// PatientsData is the model of the patient history page.
type PatientsData struct {
	Doctor   string                  `json:"doctor,omitempty"`
	Patients []types.DiagnosisRecord `json:"patients"`
}

func (h *AdminHandler) Patients(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("doctor"))
	patients, err := h.admin.Patients(r.Context(), filter)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("admin patients")
		h.redirect(w, r, flashError, msgDashboardFailed, "/admin")
		return
	}
	h.page(w, r, "admin_patients", PatientsData{Doctor: filter, Patients: patients})
}

func (h *AdminHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgDoctorMissing, "/admin")
		return
	}
	doctor, err := h.admin.ToggleStatus(r.Context(), h.actor(r), fields["username"])
	if err != nil {
		h.doctorActionFailed(w, r, err, "toggle doctor status")
		return
	}
	h.redirect(w, r, flashSuccess, "Statut du médecin "+doctor.Username+" mis à jour", "/admin")
}

func (h *AdminHandler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgFieldsRequired, "/admin")
		return
	}

	isAdmin, _ := strconv.ParseBool(fields["is_admin"])
	_, err = h.admin.AddDoctor(r.Context(), h.actor(r), services.AddDoctorInput{
		Username:  fields["username"],
		Name:      fields["nom"],
		Specialty: fields["specialite"],
		Email:     fields["email"],
		Password:  fields["password"],
		Signature: fields["signature"],
		IsAdmin:   isAdmin,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			h.redirect(w, r, flashError, msgFieldsRequired, "/admin")
		case errors.Is(err, services.ErrDoctorExists):
			h.redirect(w, r, flashError, msgDoctorExists, "/admin")
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("add doctor")
			h.redirect(w, r, flashError, msgUnexpectedFailure, "/admin")
		}
		return
	}
	h.redirect(w, r, flashSuccess, msgDoctorAdded, "/admin")
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgDoctorMissing, "/admin")
		return
	}
	doctor, err := h.admin.ResetPassword(r.Context(), h.actor(r), fields["username"])
	if err != nil {
		h.doctorActionFailed(w, r, err, "reset doctor password")
		return
	}
	h.redirect(w, r, flashSuccess, "Mot de passe réinitialisé pour "+doctor.Username, "/admin")
}

func (h *AdminHandler) doctorActionFailed(w http.ResponseWriter, r *http.Request, err error, action string) {
	if errors.Is(err, services.ErrDoctorNotFound) {
		h.redirect(w, r, flashError, msgDoctorMissing, "/admin")
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(action)
	h.redirect(w, r, flashError, msgUnexpectedFailure, "/admin")
}

// RecentActivityResponse feeds the dashboard activity panel.
type RecentActivityResponse struct {
	RecentActivity []types.ActivityEntry `json:"recent_activity"`
}

func (h *AdminHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(parsed, maxActivityLimit)
	}

	entries, err := h.admin.RecentActivity(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("recent activity")
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, RecentActivityResponse{RecentActivity: entries})
}

// ServicesResponse lists the hospital services catalog.
type ServicesResponse struct {
	Services []types.HospitalService `json:"services"`
}

func (h *AdminHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list services")
		writeError(w, http.StatusInternalServerError, "failed to load services")
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{Services: list})
}

type AddServiceRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (h *AdminHandler) AddService(w http.ResponseWriter, r *http.Request) {
	var req AddServiceRequest
	err := jsonOrForm(w, r, &req, func(fields map[string]string) {
		req.Name = fields["name"]
		req.Code = fields["code"]
		req.Description = fields["description"]
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	svc, err := h.catalog.Add(r.Context(), h.actor(r), req.Name, req.Code, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			writeError(w, http.StatusBadRequest, msgServiceNameNeeded)
		case errors.Is(err, services.ErrServiceExists):
			writeError(w, http.StatusConflict, msgServiceExists)
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("add service")
			writeError(w, http.StatusInternalServerError, "failed to add service")
		}
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

type DeleteServiceRequest struct {
	ID string `json:"id"`
}

func (h *AdminHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	var req DeleteServiceRequest
	err := jsonOrForm(w, r, &req, func(fields map[string]string) {
		req.ID = fields["id"]
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.catalog.Delete(r.Context(), h.actor(r), req.ID); err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "missing id")
		case errors.Is(err, services.ErrServiceNotFound):
			writeError(w, http.StatusNotFound, msgServiceMissing)
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("delete service")
			writeError(w, http.StatusInternalServerError, "failed to delete service")
		}
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Service supprimé"})
}

func (h *AdminHandler) ReloadServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ReloadFromMapping(r.Context(), h.actor(r))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("reload services")
		writeError(w, http.StatusInternalServerError, "failed to reload services")
		return
	}
	writeJSON(w, http.StatusOK, ServicesResponse{Services: list})
}

func (h *AdminHandler) actor(r *http.Request) string {
	doctor, _ := doctorFromContext(r.Context())
	return doctor.Username
}
