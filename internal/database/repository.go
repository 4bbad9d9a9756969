package database

import (
	"context"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// OrganizationRepository manages tenant organizations.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id int64) (*models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id int64) error
}

// AgentRepository manages voice-AI agent records.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id int64) (*models.Agent, error)
	List(ctx context.Context) ([]models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	Delete(ctx context.Context, id int64) error
}

// PhoneLineRepository manages telephony numbers.
type PhoneLineRepository interface {
	Create(ctx context.Context, line *models.PhoneLine) error
	GetByID(ctx context.Context, id int64) (*models.PhoneLine, error)
	GetByNumber(ctx context.Context, number string) (*models.PhoneLine, error)
	List(ctx context.Context) ([]models.PhoneLine, error)
	Update(ctx context.Context, line *models.PhoneLine) error
	Delete(ctx context.Context, id int64) error
}

// RoutingScheduleRepository manages day/time-window transfer rules.
// ListEnabledByLine returns schedules in deterministic creation order; the
// schedule matcher takes the first match in that order.
type RoutingScheduleRepository interface {
	Create(ctx context.Context, sched *models.RoutingSchedule) error
	GetByID(ctx context.Context, id int64) (*models.RoutingSchedule, error)
	ListByLine(ctx context.Context, phoneLineID int64) ([]models.RoutingSchedule, error)
	ListEnabledByLine(ctx context.Context, phoneLineID int64) ([]models.RoutingSchedule, error)
	Update(ctx context.Context, sched *models.RoutingSchedule) error
	Delete(ctx context.Context, id int64) error
}

// CallListFilter specifies filtering and pagination for call list queries.
type CallListFilter struct {
	Limit         int
	Offset        int
	Search        string // matches from_number or to_number
	RoutingStatus string // one of the models.RoutingStatus* values, or "" for all
	PhoneLineID   int64  // 0 for all lines
}

// CallRepository manages call records and their append-only event ledger.
// AppendEvent is a single INSERT into the ledger, so concurrent webhook
// deliveries for the same call can never clobber each other's events.
type CallRepository interface {
	Create(ctx context.Context, call *models.Call) error
	GetByID(ctx context.Context, id int64) (*models.Call, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.Call, error)
	GetByProviderCallID(ctx context.Context, providerCallID string) (*models.Call, error)
	List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error)
	UpdateRoutingStatus(ctx context.Context, id int64, status string) error
	UpdateData(ctx context.Context, id int64, data string) error
	CountByRoutingStatus(ctx context.Context) (map[string]int64, error)
	AppendEvent(ctx context.Context, event *models.CallEvent) error
	ListEvents(ctx context.Context, callID int64) ([]models.CallEvent, error)
	HasEvent(ctx context.Context, callID int64, eventType string) (bool, error)
}

// AdminUserRepository manages admin panel users.
type AdminUserRepository interface {
	Create(ctx context.Context, user *models.AdminUser) error
	GetByID(ctx context.Context, id int64) (*models.AdminUser, error)
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Count(ctx context.Context) (int64, error)
}
