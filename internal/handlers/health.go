package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const readinessTimeout = 2 * time.Second

// HealthChecker is an optional backend probed by /readyz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// ReadinessResponse reports the state of every dependency. The classifier
// is informative only: without it the server still serves every page.
type ReadinessResponse struct {
	Status         string            `json:"status"`
	ModelAvailable bool              `json:"model_available"`
	PDFAvailable   bool              `json:"pdf_available"`
	Checks         map[string]string `json:"checks"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks         map[string]HealthChecker
	modelAvailable func() bool
	pdfAvailable   func() bool
}

func NewHealthHandler(checks map[string]HealthChecker, modelAvailable, pdfAvailable func() bool) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &HealthHandler{checks: checks, modelAvailable: modelAvailable, pdfAvailable: pdfAvailable}
}

// HealthRouter registers /healthz and /readyz.
func HealthRouter(r chi.Router, handler *HealthHandler) {
	r.Get("/healthz", Healthz)
	r.Get("/readyz", handler.Readyz)
}

// Healthz reports that the process is up.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status:         "ok",
		ModelAvailable: h.modelAvailable != nil && h.modelAvailable(),
		PDFAvailable:   h.pdfAvailable != nil && h.pdfAvailable(),
		Checks:         make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
