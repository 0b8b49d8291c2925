package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleet-analytics/internal/audit"
	"fleet-analytics/internal/auth"
	"fleet-analytics/internal/observability/metrics"
)

// Recorder appends audit entries for the handler's own mutations.
type Recorder interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// Handler serves the audit query endpoints under /api/v1/audit.
type Handler struct {
	engine   *audit.QueryEngine
	recorder Recorder
	logger   *zap.Logger
}

// NewHandler constructs an audit Handler. The recorder is optional.
func NewHandler(engine *audit.QueryEngine, recorder Recorder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, recorder: recorder, logger: logger}
}

// Register mounts the audit routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/audit", h.handleList)
	mux.HandleFunc("/api/v1/audit/stats", h.handleStats)
	mux.HandleFunc("/api/v1/audit/history", h.handleHistory)
	mux.HandleFunc("/api/v1/audit/export", h.handleExport)
	mux.HandleFunc("/api/v1/audit/export.json", h.handleExport)
	mux.HandleFunc("/api/v1/audit/export.csv", h.handleExport)
	mux.HandleFunc("/api/v1/audit/cleanup", h.handleCleanup)
}

type listResponse struct {
	Entries    []audit.Entry    `json:"entries"`
	Pagination audit.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, limit, err := parsePaging(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	order := audit.SortDesc
	if r.URL.Query().Get("order") == string(audit.SortAsc) {
		order = audit.SortAsc
	}

	entries, pagination, err := h.engine.List(r.Context(), filter, page, limit, order)
	if err != nil {
		metrics.IncAuditQuery("list", metrics.ResultError)
		h.writeError(w, err)
		return
	}
	metrics.IncAuditQuery("list", metrics.ResultSuccess)
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, listResponse{Entries: entries, Pagination: pagination})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := h.engine.Stats(r.Context(), filter)
	if err != nil {
		metrics.IncAuditQuery("stats", metrics.ResultError)
		h.writeError(w, err)
		return
	}
	metrics.IncAuditQuery("stats", metrics.ResultSuccess)
	writeJSON(w, stats)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	resource := query.Get("resource")
	resourceID := query.Get("resource_id")
	if resource == "" || resourceID == "" {
		http.Error(w, "resource and resource_id are required", http.StatusBadRequest)
		return
	}
	limit := 0
	if value := query.Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.engine.EntityHistory(r.Context(), resource, resourceID, limit)
	if err != nil {
		metrics.IncAuditQuery("history", metrics.ResultError)
		h.writeError(w, err)
		return
	}
	metrics.IncAuditQuery("history", metrics.ResultSuccess)
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, entries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		// /api/v1/audit/export.csv style paths carry the format as suffix.
		if idx := strings.LastIndex(r.URL.Path, "."); idx >= 0 {
			format = r.URL.Path[idx+1:]
		}
	}
	if format == "" {
		format = audit.ExportJSON
	}

	data, contentType, err := h.engine.Export(r.Context(), format, filter)
	if err != nil {
		metrics.IncAuditQuery("export", metrics.ResultError)
		h.writeError(w, err)
		return
	}
	metrics.IncAuditQuery("export", metrics.ResultSuccess)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-export."+format+"\"")
	_, _ = w.Write(data)
}

type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

type cleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deleted, err := h.engine.Cleanup(r.Context(), req.RetentionDays)
	if err != nil {
		metrics.ObserveAuditCleanup(metrics.ResultError, 0)
		h.writeError(w, err)
		return
	}
	metrics.ObserveAuditCleanup(metrics.ResultSuccess, deleted)
	h.recordCleanup(r, req.RetentionDays, deleted)
	writeJSON(w, cleanupResponse{Deleted: deleted})
}

// recordCleanup appends an audit entry for the cleanup run itself.
// Failures are logged, not surfaced; the cleanup already happened.
func (h *Handler) recordCleanup(r *http.Request, retentionDays int, deleted int64) {
	if h.recorder == nil {
		return
	}
	after, _ := json.Marshal(map[string]any{
		"retention_days": retentionDays,
		"deleted":        deleted,
	})
	entry := audit.Entry{
		UserID:     auth.SubjectFromContext(r.Context()),
		Role:       string(auth.RoleFromContext(r.Context())),
		Action:     audit.ActionDelete,
		Resource:   "audit",
		ResourceID: "retention",
		Changes:    audit.Changes{After: after},
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	if err := h.recorder.Append(r.Context(), entry); err != nil {
		h.logger.Warn("audit append failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidRange),
		errors.Is(err, audit.ErrInvalidRetention),
		errors.Is(err, audit.ErrUnsupportedFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("audit request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	query := r.URL.Query()
	filter := audit.Filter{
		Resource: query.Get("resource"),
		UserID:   query.Get("user_id"),
		Action:   query.Get("action"),
	}
	if value := query.Get("from"); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return audit.Filter{}, errors.New("from must be RFC3339")
		}
		filter.From = parsed.UTC()
	}
	if value := query.Get("to"); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return audit.Filter{}, errors.New("to must be RFC3339")
		}
		filter.To = parsed.UTC()
	}
	return filter, nil
}

func parsePaging(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	page, limit := 0, 0
	if value := query.Get("page"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = parsed
	}
	if value := query.Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = parsed
	}
	return page, limit, nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
