package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-analytics/internal/audit"
)

const defaultTable = "audit_entries"

// Repository is a Postgres implementation of the audit store.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	repo := &Repository{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Append writes an audit entry.
func (r *Repository) Append(ctx context.Context, entry audit.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	if entry.ID == "" {
		entry.ID = audit.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Digest == "" {
		entry.Digest = audit.DigestChanges(entry.Changes)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, user_id, role, action, resource, resource_id,
	changes_before, changes_after, digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Role, entry.Action, entry.Resource, entry.ResourceID,
		nullableJSON(entry.Changes.Before), nullableJSON(entry.Changes.After),
		entry.Digest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// List returns one page of matching entries plus the total match count.
func (r *Repository) List(ctx context.Context, filter audit.Filter, order audit.SortOrder, limit, offset int) ([]audit.Entry, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("audit repo: nil db")
	}
	where, args := buildWhere(filter)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", r.table, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	direction := "DESC"
	if order == audit.SortAsc {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
SELECT id, user_id, role, action, resource, resource_id,
	changes_before, changes_after, digest, ip, user_agent, created_at
FROM %s %s
ORDER BY created_at %s
LIMIT $%d OFFSET $%d`, r.table, where, direction, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	entries, err := r.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListAll returns every matching entry, unpaginated.
func (r *Repository) ListAll(ctx context.Context, filter audit.Filter, order audit.SortOrder) ([]audit.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	where, args := buildWhere(filter)
	direction := "DESC"
	if order == audit.SortAsc {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
SELECT id, user_id, role, action, resource, resource_id,
	changes_before, changes_after, digest, ip, user_agent, created_at
FROM %s %s
ORDER BY created_at %s`, r.table, where, direction)
	return r.queryEntries(ctx, query, args...)
}

// ByResource returns the newest entries for one resource instance.
func (r *Repository) ByResource(ctx context.Context, resource, resourceID string, limit int) ([]audit.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, user_id, role, action, resource, resource_id,
	changes_before, changes_after, digest, ip, user_agent, created_at
FROM %s
WHERE resource = $1 AND resource_id = $2
ORDER BY created_at DESC
LIMIT $3`, r.table)
	return r.queryEntries(ctx, query, resource, resourceID, limit)
}

// DeleteBefore removes all entries older than cutoff in one statement.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("audit repo: nil db")
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", r.table)
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]audit.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var before, after, role, ip, userAgent sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&role,
			&entry.Action,
			&entry.Resource,
			&entry.ResourceID,
			&before,
			&after,
			&entry.Digest,
			&ip,
			&userAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Role = role.String
		entry.IP = ip.String
		entry.UserAgent = userAgent.String
		if before.Valid {
			entry.Changes.Before = []byte(before.String)
		}
		if after.Valid {
			entry.Changes.After = []byte(after.String)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func buildWhere(filter audit.Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Resource != "" {
		add("resource = $%d", filter.Resource)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return data
}
