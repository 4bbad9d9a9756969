package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// phoneLineRepo implements PhoneLineRepository.
type phoneLineRepo struct {
	db *DB
}

// NewPhoneLineRepository creates a new PhoneLineRepository.
func NewPhoneLineRepository(db *DB) PhoneLineRepository {
	return &phoneLineRepo{db: db}
}

// Create inserts a new phone line.
func (r *phoneLineRepo) Create(ctx context.Context, line *models.PhoneLine) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO phone_lines (number, provider, agent_id, organization_id,
		 time_based_routing, timezone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		line.Number, line.Provider, line.AgentID, line.OrganizationID,
		line.TimeBasedRouting, line.Timezone,
	)
	if err != nil {
		return fmt.Errorf("inserting phone line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// GetByID returns a phone line by ID.
func (r *phoneLineRepo) GetByID(ctx context.Context, id int64) (*models.PhoneLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, number, provider, agent_id, organization_id,
		 time_based_routing, timezone, created_at, updated_at
		 FROM phone_lines WHERE id = ?`, id,
	))
}

// GetByNumber returns a phone line by its E.164 number.
func (r *phoneLineRepo) GetByNumber(ctx context.Context, number string) (*models.PhoneLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, number, provider, agent_id, organization_id,
		 time_based_routing, timezone, created_at, updated_at
		 FROM phone_lines WHERE number = ?`, number,
	))
}

// List returns all phone lines ordered by number.
func (r *phoneLineRepo) List(ctx context.Context) ([]models.PhoneLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, number, provider, agent_id, organization_id,
		 time_based_routing, timezone, created_at, updated_at
		 FROM phone_lines ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("querying phone lines: %w", err)
	}
	defer rows.Close()

	var lines []models.PhoneLine
	for rows.Next() {
		var l models.PhoneLine
		if err := rows.Scan(&l.ID, &l.Number, &l.Provider, &l.AgentID,
			&l.OrganizationID, &l.TimeBasedRouting, &l.Timezone,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning phone line row: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Update modifies an existing phone line.
func (r *phoneLineRepo) Update(ctx context.Context, line *models.PhoneLine) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE phone_lines SET number = ?, provider = ?, agent_id = ?,
		 organization_id = ?, time_based_routing = ?, timezone = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		line.Number, line.Provider, line.AgentID, line.OrganizationID,
		line.TimeBasedRouting, line.Timezone, line.ID,
	)
	if err != nil {
		return fmt.Errorf("updating phone line: %w", err)
	}
	return nil
}

// Delete removes a phone line by ID.
func (r *phoneLineRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM phone_lines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting phone line: %w", err)
	}
	return nil
}

func (r *phoneLineRepo) scanOne(row *sql.Row) (*models.PhoneLine, error) {
	var l models.PhoneLine
	err := row.Scan(&l.ID, &l.Number, &l.Provider, &l.AgentID,
		&l.OrganizationID, &l.TimeBasedRouting, &l.Timezone,
		&l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning phone line: %w", err)
	}
	return &l, nil
}
