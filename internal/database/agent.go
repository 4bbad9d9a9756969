package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// agentRepo implements AgentRepository.
type agentRepo struct {
	db *DB
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(db *DB) AgentRepository {
	return &agentRepo{db: db}
}

// Create inserts a new agent record.
func (r *agentRepo) Create(ctx context.Context, agent *models.Agent) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO agents (name, vendor_agent_id, organization_id, created_at, updated_at)
		 VALUES (?, ?, ?, datetime('now'), datetime('now'))`,
		agent.Name, agent.VendorAgentID, agent.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	agent.ID = id
	return nil
}

// GetByID returns an agent by ID.
func (r *agentRepo) GetByID(ctx context.Context, id int64) (*models.Agent, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, name, vendor_agent_id, organization_id, created_at, updated_at
		 FROM agents WHERE id = ?`, id,
	))
}

// List returns all agents ordered by name.
func (r *agentRepo) List(ctx context.Context) ([]models.Agent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, vendor_agent_id, organization_id, created_at, updated_at
		 FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.VendorAgentID, &a.OrganizationID,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Update modifies an existing agent.
func (r *agentRepo) Update(ctx context.Context, agent *models.Agent) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE agents SET name = ?, vendor_agent_id = ?, organization_id = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		agent.Name, agent.VendorAgentID, agent.OrganizationID, agent.ID,
	)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}
	return nil
}

// Delete removes an agent by ID.
func (r *agentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	return nil
}

func (r *agentRepo) scanOne(row *sql.Row) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.Name, &a.VendorAgentID, &a.OrganizationID,
		&a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	return &a, nil
}
