package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// routingScheduleRepo implements RoutingScheduleRepository.
type routingScheduleRepo struct {
	db *DB
}

// NewRoutingScheduleRepository creates a new RoutingScheduleRepository.
func NewRoutingScheduleRepository(db *DB) RoutingScheduleRepository {
	return &routingScheduleRepo{db: db}
}

const routingScheduleColumns = `id, phone_line_id, days, start_time, end_time,
	 transfer_to_number, dial_timeout, agent_fallback_enabled, enabled,
	 created_at, updated_at`

// Create inserts a new routing schedule.
func (r *routingScheduleRepo) Create(ctx context.Context, sched *models.RoutingSchedule) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO routing_schedules (phone_line_id, days, start_time, end_time,
		 transfer_to_number, dial_timeout, agent_fallback_enabled, enabled,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		sched.PhoneLineID, sched.Days, sched.StartTime, sched.EndTime,
		sched.TransferToNumber, sched.DialTimeout, sched.AgentFallbackEnabled,
		sched.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting routing schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	sched.ID = id
	return nil
}

// GetByID returns a routing schedule by ID.
func (r *routingScheduleRepo) GetByID(ctx context.Context, id int64) (*models.RoutingSchedule, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+routingScheduleColumns+` FROM routing_schedules WHERE id = ?`, id,
	))
}

// ListByLine returns all schedules for a phone line in creation order.
func (r *routingScheduleRepo) ListByLine(ctx context.Context, phoneLineID int64) ([]models.RoutingSchedule, error) {
	return r.list(ctx,
		`SELECT `+routingScheduleColumns+` FROM routing_schedules
		 WHERE phone_line_id = ? ORDER BY created_at, id`, phoneLineID)
}

// ListEnabledByLine returns enabled schedules for a phone line in creation
// order. The matcher takes the first match in this order, so the ordering
// must stay deterministic.
func (r *routingScheduleRepo) ListEnabledByLine(ctx context.Context, phoneLineID int64) ([]models.RoutingSchedule, error) {
	return r.list(ctx,
		`SELECT `+routingScheduleColumns+` FROM routing_schedules
		 WHERE phone_line_id = ? AND enabled = 1 ORDER BY created_at, id`, phoneLineID)
}

// Update modifies an existing routing schedule.
func (r *routingScheduleRepo) Update(ctx context.Context, sched *models.RoutingSchedule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE routing_schedules SET days = ?, start_time = ?, end_time = ?,
		 transfer_to_number = ?, dial_timeout = ?, agent_fallback_enabled = ?,
		 enabled = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		sched.Days, sched.StartTime, sched.EndTime, sched.TransferToNumber,
		sched.DialTimeout, sched.AgentFallbackEnabled, sched.Enabled, sched.ID,
	)
	if err != nil {
		return fmt.Errorf("updating routing schedule: %w", err)
	}
	return nil
}

// Delete removes a routing schedule by ID.
func (r *routingScheduleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM routing_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting routing schedule: %w", err)
	}
	return nil
}

func (r *routingScheduleRepo) list(ctx context.Context, query string, args ...any) ([]models.RoutingSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying routing schedules: %w", err)
	}
	defer rows.Close()

	var scheds []models.RoutingSchedule
	for rows.Next() {
		var s models.RoutingSchedule
		if err := rows.Scan(&s.ID, &s.PhoneLineID, &s.Days, &s.StartTime,
			&s.EndTime, &s.TransferToNumber, &s.DialTimeout,
			&s.AgentFallbackEnabled, &s.Enabled, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning routing schedule row: %w", err)
		}
		scheds = append(scheds, s)
	}
	return scheds, rows.Err()
}

func (r *routingScheduleRepo) scanOne(row *sql.Row) (*models.RoutingSchedule, error) {
	var s models.RoutingSchedule
	err := row.Scan(&s.ID, &s.PhoneLineID, &s.Days, &s.StartTime, &s.EndTime,
		&s.TransferToNumber, &s.DialTimeout, &s.AgentFallbackEnabled,
		&s.Enabled, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning routing schedule: %w", err)
	}
	return &s, nil
}
