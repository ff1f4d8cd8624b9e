// Package report turns diagnosis records into printable PDF documents.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/diagnoclinic/apiserver/types"
)

// ErrRenderer is returned when no PDF renderer is available.
var ErrRenderer = errors.New("pdf renderer unavailable")

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

const (
	dateLayout     = "02/01/2006 15:04"
	filenameLayout = "20060102"
)

var documentTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Rapport de diagnostic</title>
<style>
body { font-family: "DejaVu Sans", Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; border-bottom: 2px solid #2c7be5; padding-bottom: 6px; }
h2 { font-size: 15px; color: #2c7be5; margin-top: 18px; }
table { width: 100%; border-collapse: collapse; }
td { padding: 4px 6px; border-bottom: 1px solid #e3e6ea; }
td.label { width: 35%; font-weight: bold; }
.footer { margin-top: 30px; font-size: 11px; color: #666; }
.signature { margin-top: 24px; white-space: pre-line; }
</style>
</head>
<body>
<h1>Rapport de diagnostic</h1>
<p>Date du diagnostic : {{.Record.Date}}</p>

<h2>Informations du patient</h2>
<table>
<tr><td class="label">Nom</td><td>{{.Record.Patient.LastName}}</td></tr>
<tr><td class="label">Prénom</td><td>{{.Record.Patient.FirstName}}</td></tr>
<tr><td class="label">CNE</td><td>{{.Record.Patient.CNE}}</td></tr>
<tr><td class="label">Âge</td><td>{{.Record.Patient.Age}}</td></tr>
<tr><td class="label">Genre</td><td>{{.Record.Patient.Gender}}</td></tr>
</table>

<h2>Symptômes</h2>
<table>
<tr><td class="label">Fièvre</td><td>{{.Record.Symptoms.Fever}}</td></tr>
<tr><td class="label">Toux</td><td>{{.Record.Symptoms.Cough}}</td></tr>
<tr><td class="label">Fatigue</td><td>{{.Record.Symptoms.Fatigue}}</td></tr>
<tr><td class="label">Difficulté respiratoire</td><td>{{.Record.Symptoms.Breathing}}</td></tr>
</table>

<h2>Diagnostic</h2>
<table>
<tr><td class="label">Maladie</td><td>{{.Record.Diagnostic.Disease}}</td></tr>
<tr><td class="label">Confiance</td><td>{{.Record.Diagnostic.Confidence}}</td></tr>
<tr><td class="label">Service recommandé</td><td>{{.Record.Diagnostic.Service}}</td></tr>
</table>

<h2>Examens recommandés</h2>
<ul>
{{range .Record.Diagnostic.Exams}}<li>{{.}}</li>
{{else}}<li>Aucun examen recommandé</li>
{{end}}</ul>

<h2>Médecin traitant</h2>
<p>{{.Record.Physician.Name}}{{with .Record.Physician.Specialty}} ({{.}}){{end}}</p>
{{with .Signature}}<p class="signature">{{.}}</p>{{end}}

<p class="footer">Document généré le {{.Generated}}</p>
</body>
</html>
`))

// Document renders the HTML source of the report for rec.
func Document(rec types.DiagnosisRecord, signature string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, struct {
		Record    types.DiagnosisRecord
		Signature string
		Generated string
	}{
		Record:    rec,
		Signature: strings.TrimSpace(signature),
		Generated: now.Format(dateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("render report document: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the attachment name of the report, diagnostic_<nom>_<YYYYMMDD>.pdf.
// Characters that are unsafe in a header value are replaced by underscores.
func Filename(rec types.DiagnosisRecord, now time.Time) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(rec.Patient.LastName))
	if strings.Trim(name, "_") == "" {
		name = "patient"
	}
	return fmt.Sprintf("diagnostic_%s_%s.pdf", name, now.Format(filenameLayout))
}
