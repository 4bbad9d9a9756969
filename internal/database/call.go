package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// callRepo implements CallRepository.
type callRepo struct {
	db *DB
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(db *DB) CallRepository {
	return &callRepo{db: db}
}

const callColumns = `id, public_id, organization_id, agent_id, phone_line_id,
	 provider_call_id, from_number, to_number, routing_status, data,
	 created_at, updated_at`

// Create inserts a new call record.
func (r *callRepo) Create(ctx context.Context, call *models.Call) error {
	if call.Data == "" {
		call.Data = "{}"
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO calls (public_id, organization_id, agent_id, phone_line_id,
		 provider_call_id, from_number, to_number, routing_status, data,
		 created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		call.PublicID, call.OrganizationID, call.AgentID, call.PhoneLineID,
		call.ProviderCallID, call.FromNumber, call.ToNumber,
		call.RoutingStatus, call.Data,
	)
	if err != nil {
		return fmt.Errorf("inserting call: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

// GetByID returns a call by ID.
func (r *callRepo) GetByID(ctx context.Context, id int64) (*models.Call, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE id = ?`, id,
	))
}

// GetByPublicID returns a call by its public UUID.
func (r *callRepo) GetByPublicID(ctx context.Context, publicID string) (*models.Call, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE public_id = ?`, publicID,
	))
}

// GetByProviderCallID returns a call by the telephony provider's call SID.
func (r *callRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (*models.Call, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE provider_call_id = ?`, providerCallID,
	))
}

// List returns calls matching the filter, along with the total count.
func (r *callRepo) List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error) {
	where := "1=1"
	args := []any{}

	if filter.RoutingStatus != "" {
		where += " AND routing_status = ?"
		args = append(args, filter.RoutingStatus)
	}
	if filter.PhoneLineID != 0 {
		where += " AND phone_line_id = ?"
		args = append(args, filter.PhoneLineID)
	}
	if filter.Search != "" {
		where += " AND (from_number LIKE ? OR to_number LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s)
	}

	// Count total matching rows.
	var total int
	countQuery := "SELECT COUNT(*) FROM calls WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting calls: %w", err)
	}

	// Fetch the page of results.
	query := `SELECT ` + callColumns + ` FROM calls WHERE ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		var c models.Call
		if err := rows.Scan(&c.ID, &c.PublicID, &c.OrganizationID, &c.AgentID,
			&c.PhoneLineID, &c.ProviderCallID, &c.FromNumber, &c.ToNumber,
			&c.RoutingStatus, &c.Data, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning call row: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating call rows: %w", err)
	}

	return calls, total, nil
}

// UpdateRoutingStatus sets the routing status of a call.
func (r *callRepo) UpdateRoutingStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calls SET routing_status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("updating call routing status: %w", err)
	}
	return nil
}

// UpdateData replaces the opaque JSON data payload of a call.
func (r *callRepo) UpdateData(ctx context.Context, id int64, data string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calls SET data = ?, updated_at = datetime('now') WHERE id = ?`,
		data, id,
	)
	if err != nil {
		return fmt.Errorf("updating call data: %w", err)
	}
	return nil
}

// AppendEvent inserts one event into the call's ledger. The ledger is
// append-only; events are never updated or deleted.
func (r *callRepo) AppendEvent(ctx context.Context, event *models.CallEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Details == "" {
		event.Details = "{}"
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO call_events (call_id, type, timestamp, details)
		 VALUES (?, ?, ?, ?)`,
		event.CallID, event.Type, event.Timestamp, event.Details,
	)
	if err != nil {
		return fmt.Errorf("inserting call event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	event.ID = id
	return nil
}

// ListEvents returns a call's events in insertion order.
func (r *callRepo) ListEvents(ctx context.Context, callID int64) ([]models.CallEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, call_id, type, timestamp, details
		 FROM call_events WHERE call_id = ? ORDER BY id`, callID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying call events: %w", err)
	}
	defer rows.Close()

	var events []models.CallEvent
	for rows.Next() {
		var e models.CallEvent
		if err := rows.Scan(&e.ID, &e.CallID, &e.Type, &e.Timestamp, &e.Details); err != nil {
			return nil, fmt.Errorf("scanning call event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByRoutingStatus returns call counts grouped by routing status.
func (r *callRepo) CountByRoutingStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT routing_status, COUNT(*) FROM calls GROUP BY routing_status`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting calls by routing status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning call count row: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// HasEvent reports whether a call's ledger contains an event of the given type.
func (r *callRepo) HasEvent(ctx context.Context, callID int64, eventType string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM call_events WHERE call_id = ? AND type = ?`,
		callID, eventType,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting call events: %w", err)
	}
	return count > 0, nil
}

func (r *callRepo) scanOne(row *sql.Row) (*models.Call, error) {
	var c models.Call
	err := row.Scan(&c.ID, &c.PublicID, &c.OrganizationID, &c.AgentID,
		&c.PhoneLineID, &c.ProviderCallID, &c.FromNumber, &c.ToNumber,
		&c.RoutingStatus, &c.Data, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}
	return &c, nil
}
