package report

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/internal/storage"
	"github.com/diagnoclinic/apiserver/types"
)

// Export is one rendered report. Key is empty when nothing was archived.
type Export struct {
	Filename string
	PDF      []byte
	Key      string
	Archived bool
}

// Exporter renders reports and archives them when an archive is configured.
// Archive failures are logged and do not fail the export.
type Exporter struct {
	renderer Renderer
	archive  *Archive
	logger   zerolog.Logger
}

func NewExporter(renderer Renderer, archive *Archive, logger zerolog.Logger) *Exporter {
	return &Exporter{renderer: renderer, archive: archive, logger: logger}
}

// Available reports whether a renderer is configured.
func (e *Exporter) Available() bool {
	return e != nil && e.renderer != nil
}

// Export renders a report from posted result data and archives it under a
// one-off key.
func (e *Exporter) Export(ctx context.Context, rec types.DiagnosisRecord, signature string, now time.Time) (Export, error) {
	out, err := e.render(ctx, rec, signature, now)
	if err != nil {
		return Export{}, err
	}
	e.put(ctx, AdhocKey(now), rec, &out)
	return out, nil
}

// ExportStored serves the archived report of a history record when one
// exists. Otherwise it renders the record and archives the result, which
// becomes the report of record for later exports.
func (e *Exporter) ExportStored(ctx context.Context, rec types.DiagnosisRecord, signature string, now time.Time) (Export, error) {
	key := StoredKey(rec.ID)
	pdf, err := e.archive.Get(ctx, key)
	switch {
	case err == nil:
		return Export{Filename: Filename(rec, now), PDF: pdf, Key: key, Archived: true}, nil
	case !errors.Is(err, storage.ErrObjectNotFound):
		e.logger.Warn().Err(err).Str("record_id", rec.ID).Msg("read archived report")
	}

	out, err := e.render(ctx, rec, signature, now)
	if err != nil {
		return Export{}, err
	}
	e.put(ctx, key, rec, &out)
	return out, nil
}

func (e *Exporter) render(ctx context.Context, rec types.DiagnosisRecord, signature string, now time.Time) (Export, error) {
	if !e.Available() {
		return Export{}, ErrRenderer
	}
	html, err := Document(rec, signature, now)
	if err != nil {
		return Export{}, err
	}
	pdf, err := e.renderer.Render(ctx, html)
	if err != nil {
		return Export{}, err
	}
	return Export{Filename: Filename(rec, now), PDF: pdf}, nil
}

func (e *Exporter) put(ctx context.Context, key string, rec types.DiagnosisRecord, out *Export) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Put(ctx, key, rec, out.PDF); err != nil {
		e.logger.Warn().Err(err).Str("record_id", rec.ID).Str("key", key).Msg("archive report")
		return
	}
	out.Key = key
}
