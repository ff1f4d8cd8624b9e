// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diagserver"

// Metrics groups the application counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Logins            *prometheus.CounterVec
	Diagnoses         *prometheus.CounterVec
	PDFExports        *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Diagnoses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnoses_total",
			Help:      "Completed diagnoses by predicted disease.",
		}, []string{"disease"}),
		PDFExports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_exports_total",
			Help:      "PDF report exports by outcome.",
		}, []string{"outcome"}),
		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed writes of persisted collections.",
		}, []string{"collection"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Logins,
		m.Diagnoses,
		m.PDFExports,
		m.PersistenceErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below accept a nil receiver so services can run without
// metrics in tests.

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Diagnosis(disease string) {
	if m != nil {
		m.Diagnoses.WithLabelValues(disease).Inc()
	}
}

func (m *Metrics) PDFExport(outcome string) {
	if m != nil {
		m.PDFExports.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PersistenceError(collection string) {
	if m != nil {
		m.PersistenceErrors.WithLabelValues(collection).Inc()
	}
}
