package export

import (
	"context"
	"fmt"

	domain "fleet-analytics/internal/reporting/domain"
)

// Renderer turns one assembled report into a byte payload. Rendering
// never reorders, deduplicates or drops rows; on failure no partial
// output is returned.
type Renderer interface {
	Render(report *domain.Report) ([]byte, error)
	ContentType() string
	Ext() string
}

// ForFormat returns the renderer for a format tag.
func ForFormat(format domain.Format) (Renderer, error) {
	switch format {
	case domain.FormatJSON:
		return jsonRenderer{}, nil
	case domain.FormatCSV:
		return csvRenderer{}, nil
	case domain.FormatPDF:
		return pdfRenderer{}, nil
	case domain.FormatExcel:
		return excelRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrBadRequest, format)
	}
}

// Heavy reports whether a format's rendering is CPU-bound enough to be
// isolated on the worker pool.
func Heavy(format domain.Format) bool {
	return format == domain.FormatPDF || format == domain.FormatExcel
}

// Filename builds the suggested download name for an export:
// {report-type}-{scope-id}-{start}-to-{end}.{ext}.
func Filename(report *domain.Report, renderer Renderer) string {
	return fmt.Sprintf("%s-%s-%s-to-%s.%s",
		report.Type,
		report.Scope.ID(),
		report.Period.Start.UTC().Format(domain.DateLayout),
		report.Period.End.UTC().Format(domain.DateLayout),
		renderer.Ext(),
	)
}

// Exporter renders reports, dispatching heavy formats to a worker pool
// when one is configured.
type Exporter struct {
	pool *Pool
}

// NewExporter constructs an Exporter. The pool is optional; without it
// every format renders inline.
func NewExporter(pool *Pool) *Exporter {
	return &Exporter{pool: pool}
}

// Export renders the report into the requested format and returns the
// payload, its content type and the suggested filename.
func (e *Exporter) Export(ctx context.Context, format domain.Format, report *domain.Report) ([]byte, string, string, error) {
	renderer, err := ForFormat(format)
	if err != nil {
		return nil, "", "", err
	}

	var data []byte
	if e != nil && e.pool != nil && Heavy(format) {
		data, err = e.pool.Render(ctx, renderer, report)
	} else {
		data, err = renderer.Render(report)
	}
	if err != nil {
		return nil, "", "", err
	}
	return data, renderer.ContentType(), Filename(report, renderer), nil
}
