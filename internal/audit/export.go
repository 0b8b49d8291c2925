package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"
)

// Export formats supported for audit entries.
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

type renderFunc func([]Entry) ([]byte, error)

func exportRenderer(format string) (renderFunc, string, error) {
	switch format {
	case ExportJSON:
		return renderEntriesJSON, "application/json", nil
	case ExportCSV:
		return renderEntriesCSV, "text/csv; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func renderEntriesJSON(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// CSV column order is fixed: id, user_id, role, action, resource,
// resource_id, created_at, before, after.
func renderEntriesCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{
		"id",
		"user_id",
		"role",
		"action",
		"resource",
		"resource_id",
		"created_at",
		"before",
		"after",
	}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := writer.Write([]string{
			entry.ID,
			entry.UserID,
			entry.Role,
			entry.Action,
			entry.Resource,
			entry.ResourceID,
			entry.CreatedAt.UTC().Format(time.RFC3339),
			string(entry.Changes.Before),
			string(entry.Changes.After),
		}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
