package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	defaultPlantsTable = "plants"
	defaultGrantsTable = "access_grants"
)

// GrantRepository reads plant ownership and access grants.
type GrantRepository struct {
	db          *sql.DB
	plantsTable string
	grantsTable string
}

// NewGrantRepository constructs a repository.
func NewGrantRepository(db *sql.DB, opts ...Option) *GrantRepository {
	repo := &GrantRepository{db: db, plantsTable: defaultPlantsTable, grantsTable: defaultGrantsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*GrantRepository)

// WithPlantsTable overrides the default plants table name.
func WithPlantsTable(table string) Option {
	return func(repo *GrantRepository) {
		if table != "" {
			repo.plantsTable = table
		}
	}
}

// WithGrantsTable overrides the default grants table name.
func WithGrantsTable(table string) Option {
	return func(repo *GrantRepository) {
		if table != "" {
			repo.grantsTable = table
		}
	}
}

// AccessiblePlants returns the union of owned and granted plant ids.
func (r *GrantRepository) AccessiblePlants(ctx context.Context, userID string) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("grant repo: nil db")
	}
	if userID == "" {
		return nil, errors.New("grant repo: empty user id")
	}

	query := fmt.Sprintf(`
SELECT id FROM %s WHERE owner_id = $1
UNION
SELECT plant_id FROM %s WHERE user_id = $1`, r.plantsTable, r.grantsTable)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		plants = append(plants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plants, nil
}
