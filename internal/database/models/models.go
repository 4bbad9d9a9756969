package models

import "time"

// Organization represents a tenant on the platform.
type Organization struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Agent represents a voice-AI agent managed through the vendor platform.
// VendorAgentID is the opaque identifier the vendor uses for this agent.
type Agent struct {
	ID             int64
	Name           string
	VendorAgentID  string
	OrganizationID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PhoneLine represents a telephony number owned by the platform, optionally
// bound to one agent and one organization.
type PhoneLine struct {
	ID               int64
	Number           string // E.164
	Provider         string // "twilio"
	AgentID          *int64
	OrganizationID   *int64
	TimeBasedRouting bool
	Timezone         string // IANA name, e.g. "Europe/London"
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RoutingSchedule is a day/time-window rule on a phone line directing calls
// to a human team number instead of the AI agent. The time window is the
// half-open interval [StartTime, EndTime) in the line's timezone.
type RoutingSchedule struct {
	ID                   int64
	PhoneLineID          int64
	Days                 string // JSON array of weekday ints, 0=Sunday..6=Saturday
	StartTime            string // "HH:MM", zero-padded 24-hour
	EndTime              string // "HH:MM", zero-padded 24-hour
	TransferToNumber     string // E.164
	DialTimeout          int    // seconds
	AgentFallbackEnabled bool
	Enabled              bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Routing status values for a call.
const (
	RoutingStatusDirectToAgent     = "direct_to_agent"
	RoutingStatusTransferredToTeam = "transferred_to_team"
	RoutingStatusTeamNoAnswer      = "team_no_answer"
	RoutingStatusCompleted         = "completed"
)

// Call represents one inbound telephony session and its routing state.
// Data is an opaque JSON payload populated by the vendor's end-of-call
// webhook and by cost reconciliation.
type Call struct {
	ID             int64
	PublicID       string // uuid
	OrganizationID *int64
	AgentID        *int64
	PhoneLineID    *int64
	ProviderCallID string // telephony provider CallSid
	FromNumber     string
	ToNumber       string
	RoutingStatus  string
	Data           string // JSON
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Routing event types recorded in a call's event ledger.
const (
	EventIncomingCall      = "incoming_call"
	EventRoutingToTeam     = "routing_to_team"
	EventTeamAnswered      = "team_answered"
	EventTeamCallCompleted = "team_call_completed"
	EventTeamNoAnswer      = "team_no_answer"
	EventRoutingToAgent    = "routing_to_agent"
)

// CallEvent is one entry in a call's append-only routing ledger.
type CallEvent struct {
	ID        int64
	CallID    int64
	Type      string
	Timestamp time.Time
	Details   string // JSON
}

// AdminUser represents an admin panel user.
type AdminUser struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
