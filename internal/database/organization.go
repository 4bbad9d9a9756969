package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// organizationRepo implements OrganizationRepository.
type organizationRepo struct {
	db *DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *DB) OrganizationRepository {
	return &organizationRepo{db: db}
}

// Create inserts a new organization.
func (r *organizationRepo) Create(ctx context.Context, org *models.Organization) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (name, created_at, updated_at)
		 VALUES (?, datetime('now'), datetime('now'))`,
		org.Name,
	)
	if err != nil {
		return fmt.Errorf("inserting organization: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	org.ID = id
	return nil
}

// GetByID returns an organization by ID.
func (r *organizationRepo) GetByID(ctx context.Context, id int64) (*models.Organization, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM organizations WHERE id = ?`, id,
	))
}

// List returns all organizations ordered by name.
func (r *organizationRepo) List(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at
		 FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// Update modifies an existing organization.
func (r *organizationRepo) Update(ctx context.Context, org *models.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, updated_at = datetime('now') WHERE id = ?`,
		org.Name, org.ID,
	)
	if err != nil {
		return fmt.Errorf("updating organization: %w", err)
	}
	return nil
}

// Delete removes an organization by ID.
func (r *organizationRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}
	return nil
}

func (r *organizationRepo) scanOne(row *sql.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning organization: %w", err)
	}
	return &org, nil
}
