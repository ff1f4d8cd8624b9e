package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/metrics"
	"github.com/diagnoclinic/apiserver/internal/report"
	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/types"
)

const (
	msgDiagnosisFailed = "Une erreur s'est produite lors du diagnostic"
	msgModelMissing    = "Le service de diagnostic est indisponible"
	msgPDFFailed       = "Erreur lors de la génération du PDF"
	msgRecordMissing   = "Diagnostic introuvable"

	formFieldResultData = "result_data"
)

// IndexData is the model of the diagnosis form page.
type IndexData struct {
	ModelAvailable bool `json:"model_available"`
	PDFAvailable   bool `json:"pdf_available"`
}

// DiagnosisHandler serves the diagnosis form, results and PDF exports.
type DiagnosisHandler struct {
	diagnoses *services.DiagnosisService
	auth      *services.AuthService
	exporter  *report.Exporter
	metrics   *metrics.Metrics
	now       func() time.Time
	responder
}

func NewDiagnosisHandler(
	diagnoses *services.DiagnosisService,
	auth *services.AuthService,
	exporter *report.Exporter,
	m *metrics.Metrics,
	sessions *session.Manager,
) *DiagnosisHandler {
	return &DiagnosisHandler{
		diagnoses: diagnoses,
		auth:      auth,
		exporter:  exporter,
		metrics:   m,
		now:       time.Now,
		responder: responder{sessions: sessions},
	}
}

// DiagnosisRouter registers the physician routes. Every route requires a
// logged-in doctor.
func DiagnosisRouter(r chi.Router, handler *DiagnosisHandler, guards *Guards) {
	r.Group(func(r chi.Router) {
		r.Use(guards.RequireLogin)
		r.Get("/", handler.Index)
		r.Post("/result", handler.Result)
		r.Post("/download-pdf", handler.DownloadPDF)
		r.Get("/history/{recordID}/pdf", handler.HistoryPDF)
	})
}

func (h *DiagnosisHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "index", IndexData{
		ModelAvailable: h.diagnoses.Available(),
		PDFAvailable:   h.exporter.Available(),
	})
}

// Result diagnoses the submitted patient and renders the result record.
func (h *DiagnosisHandler) Result(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.redirect(w, r, flashError, msgDiagnosisFailed, "/")
		return
	}

	doctor, _ := doctorFromContext(r.Context())
	record, err := h.diagnoses.Diagnose(r.Context(), types.Physician{
		Username:  doctor.Username,
		Name:      doctor.Name,
		Specialty: doctor.Specialty,
	}, fields)
	if err != nil {
		log := zerolog.Ctx(r.Context())
		if errors.Is(err, services.ErrModelUnavailable) {
			log.Warn().Msg("diagnosis requested without a classifier")
			h.redirect(w, r, flashError, msgModelMissing, "/")
			return
		}
		log.Error().Err(err).Msg("diagnosis")
		h.redirect(w, r, flashError, msgDiagnosisFailed, "/")
		return
	}

	h.page(w, r, "result", record)
}

// DownloadPDF exports the result record posted back by the result page.
// When the posted record is in the history and the doctor may see it, the
// stored copy is exported instead of the posted data.
func (h *DiagnosisHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r)
	if err != nil {
		h.pdfFailed(w, r, err)
		return
	}
	var posted types.DiagnosisRecord
	if err := json.Unmarshal([]byte(fields[formFieldResultData]), &posted); err != nil {
		h.pdfFailed(w, r, fmt.Errorf("decode result_data: %w", err))
		return
	}

	doctor, _ := doctorFromContext(r.Context())
	if posted.ID != "" {
		stored, err := h.diagnoses.Get(r.Context(), posted.ID)
		if err == nil && mayExport(doctor, stored) {
			h.exportStored(w, r, stored)
			return
		}
	}

	// Only the attending physician's own reports carry a signature.
	posted.ID = ""
	var signature string
	if posted.Physician.Username == doctor.Username {
		signature = h.auth.Signature(r.Context(), doctor.Username)
	}
	out, err := h.exporter.Export(r.Context(), posted, signature, h.now())
	h.sendPDF(w, r, out, err)
}

// HistoryPDF exports a stored record. Doctors may export their own records;
// administrators may export any.
func (h *DiagnosisHandler) HistoryPDF(w http.ResponseWriter, r *http.Request) {
	record, err := h.diagnoses.Get(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			h.redirect(w, r, flashError, msgRecordMissing, "/")
			return
		}
		h.pdfFailed(w, r, err)
		return
	}

	doctor, _ := doctorFromContext(r.Context())
	if !mayExport(doctor, record) {
		h.redirect(w, r, flashError, msgForbidden, "/")
		return
	}
	h.exportStored(w, r, record)
}

func (h *DiagnosisHandler) exportStored(w http.ResponseWriter, r *http.Request, record types.DiagnosisRecord) {
	signature := h.auth.Signature(r.Context(), record.Physician.Username)
	out, err := h.exporter.ExportStored(r.Context(), record, signature, h.now())
	h.sendPDF(w, r, out, err)
}

func mayExport(doctor types.Doctor, record types.DiagnosisRecord) bool {
	return doctor.Admin() || record.Physician.Username == doctor.Username
}

func (h *DiagnosisHandler) sendPDF(w http.ResponseWriter, r *http.Request, out report.Export, err error) {
	if err != nil {
		h.pdfFailed(w, r, err)
		return
	}
	h.metrics.PDFExport("success")
	zerolog.Ctx(r.Context()).Debug().Str("key", out.Key).Bool("archived", out.Archived).Msg("pdf export")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.PDF)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.PDF)
}

func (h *DiagnosisHandler) pdfFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.PDFExport("failure")
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("pdf export")
	h.redirect(w, r, flashError, msgPDFFailed, "/")
}
