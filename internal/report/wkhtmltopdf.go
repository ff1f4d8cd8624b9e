package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// marginMillimeters is applied to every side of the page.
const marginMillimeters = 10

// WKHTMLToPDF renders documents with the wkhtmltopdf binary.
type WKHTMLToPDF struct{}

// NewWKHTMLToPDF locates the binary, at path when given or through the
// usual lookup otherwise, and fails when it cannot be found.
func NewWKHTMLToPDF(path string) (*WKHTMLToPDF, error) {
	if path != "" {
		wkhtmltopdf.SetPath(path)
	}
	if _, err := wkhtmltopdf.NewPDFGenerator(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderer, err)
	}
	return &WKHTMLToPDF{}, nil
}

// Render produces an A4 PDF with 1cm margins from a UTF-8 document.
func (w *WKHTMLToPDF) Render(ctx context.Context, html []byte) ([]byte, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderer, err)
	}
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.MarginTop.Set(marginMillimeters)
	pdfg.MarginRight.Set(marginMillimeters)
	pdfg.MarginBottom.Set(marginMillimeters)
	pdfg.MarginLeft.Set(marginMillimeters)
	pdfg.Quiet.Set(true)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.Encoding.Set("UTF-8")
	pdfg.AddPage(page)

	if err := pdfg.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}
	return pdfg.Bytes(), nil
}
