package reportinghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleet-analytics/internal/audit"
	"fleet-analytics/internal/auth"
	"fleet-analytics/internal/observability/metrics"
	"fleet-analytics/internal/reporting/application"
	domain "fleet-analytics/internal/reporting/domain"
	"fleet-analytics/internal/reporting/export"
)

// AuditRecorder appends audit entries for report exports.
type AuditRecorder interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// ReportHandler serves GET /api/v1/reports/{type}.
type ReportHandler struct {
	assembler *application.Assembler
	exporter  *export.Exporter
	auditor   AuditRecorder
	logger    *zap.Logger
}

// NewReportHandler constructs a ReportHandler. The auditor is optional.
func NewReportHandler(assembler *application.Assembler, exporter *export.Exporter, auditor AuditRecorder, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{
		assembler: assembler,
		exporter:  exporter,
		auditor:   auditor,
		logger:    logger,
	}
}

// ServeHTTP assembles the requested report and writes it in the requested
// format. Forbidden and unknown scopes both answer 404 so callers cannot
// probe for entity existence.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.assembler == nil || h.exporter == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	reportType := domain.ReportType(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/reports/"), "/"))

	req, format, err := h.parseRequest(r, reportType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	started := time.Now()
	report, err := h.assembler.Assemble(r.Context(), req)
	if err != nil {
		metrics.ObserveReport(string(reportType), metrics.ResultError, time.Since(started))
		h.writeError(w, err)
		return
	}
	metrics.ObserveReport(string(reportType), metrics.ResultSuccess, time.Since(started))

	exportStarted := time.Now()
	data, contentType, filename, err := h.exporter.Export(r.Context(), format, report)
	if err != nil {
		metrics.ObserveExport(string(format), metrics.ResultError, time.Since(exportStarted))
		h.writeError(w, err)
		return
	}
	metrics.ObserveExport(string(format), metrics.ResultSuccess, time.Since(exportStarted))

	h.recordExport(r, req, format, filename)

	w.Header().Set("Content-Type", contentType)
	if format != domain.FormatJSON {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	_, _ = w.Write(data)
}

func (h *ReportHandler) parseRequest(r *http.Request, reportType domain.ReportType) (application.ReportRequest, domain.Format, error) {
	query := r.URL.Query()

	from, err := parseDateQuery(query.Get("from"), "from")
	if err != nil {
		return application.ReportRequest{}, "", err
	}
	to, err := parseDateQuery(query.Get("to"), "to")
	if err != nil {
		return application.ReportRequest{}, "", err
	}

	format := domain.FormatJSON
	if value := query.Get("format"); value != "" {
		format, err = domain.ParseFormat(value)
		if err != nil {
			return application.ReportRequest{}, "", err
		}
	}

	topTypes := 0
	if value := query.Get("top_types"); value != "" {
		topTypes, err = strconv.Atoi(value)
		if err != nil || topTypes < 0 {
			return application.ReportRequest{}, "", fmt.Errorf("%w: top_types must be a non-negative integer", domain.ErrBadRequest)
		}
	}

	req := application.ReportRequest{
		Type:        reportType,
		PlantID:     query.Get("plant_id"),
		DeviceID:    query.Get("device_id"),
		From:        from,
		To:          to,
		RequesterID: auth.SubjectFromContext(r.Context()),
		Role:        auth.RoleFromContext(r.Context()),
		TopTypes:    topTypes,
	}
	return req, format, nil
}

// recordExport appends an audit entry for the export. Audit failures are
// logged, not surfaced; the export already succeeded.
func (h *ReportHandler) recordExport(r *http.Request, req application.ReportRequest, format domain.Format, filename string) {
	if h.auditor == nil {
		return
	}
	resourceID := req.PlantID
	if req.DeviceID != "" {
		resourceID = req.DeviceID
	}
	after, _ := json.Marshal(map[string]string{
		"report_type": string(req.Type),
		"format":      string(format),
		"filename":    filename,
		"from":        req.From.Format(domain.DateLayout),
		"to":          req.To.Format(domain.DateLayout),
	})
	entry := audit.Entry{
		UserID:     req.RequesterID,
		Role:       string(req.Role),
		Action:     audit.ActionExport,
		Resource:   "report",
		ResourceID: resourceID,
		Changes:    audit.Changes{After: after},
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	if err := h.auditor.Append(r.Context(), entry); err != nil {
		h.logger.Warn("audit append failed", zap.Error(err))
	}
}

func (h *ReportHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "render timed out", http.StatusGatewayTimeout)
	case errors.Is(err, domain.ErrRender):
		h.logger.Error("report render failed", zap.Error(err))
		http.Error(w, "render error", http.StatusInternalServerError)
	default:
		h.logger.Error("report request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseDateQuery(value, key string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrBadRequest, key)
	}
	parsed, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrBadRequest, key)
	}
	return parsed.UTC(), nil
}
