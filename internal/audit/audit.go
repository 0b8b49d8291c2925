package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the audit trail.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionExport = "EXPORT"
)

// Changes carries the before/after snapshot of a mutated resource.
type Changes struct {
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Entry is one append-only audit record. Entries are never mutated after
// creation.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	Changes    Changes   `json:"changes,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows audit queries. Zero-valued fields are ignored; set
// fields combine with AND semantics.
type Filter struct {
	Resource string
	UserID   string
	Action   string
	From     time.Time
	To       time.Time
}

// Matches reports whether an entry satisfies the filter.
func (f Filter) Matches(entry Entry) bool {
	if f.Resource != "" && entry.Resource != f.Resource {
		return false
	}
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && entry.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && entry.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// SortOrder controls timestamp ordering of list results.
type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// Store persists and queries audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// List returns one page of matching entries plus the total match count.
	List(ctx context.Context, filter Filter, order SortOrder, limit, offset int) ([]Entry, int, error)
	// ListAll returns every matching entry, unpaginated.
	ListAll(ctx context.Context, filter Filter, order SortOrder) ([]Entry, error)
	// ByResource returns the newest entries for one resource instance.
	ByResource(ctx context.Context, resource, resourceID string, limit int) ([]Entry, error)
	// DeleteBefore removes all entries older than cutoff and returns the count.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestChanges computes a SHA256 hex digest over a change snapshot,
// giving stored entries a tamper-evidence anchor.
func DigestChanges(changes Changes) string {
	if len(changes.Before) == 0 && len(changes.After) == 0 {
		return ""
	}
	sum := sha256.New()
	sum.Write(changes.Before)
	sum.Write([]byte{0})
	sum.Write(changes.After)
	return hex.EncodeToString(sum.Sum(nil))
}
