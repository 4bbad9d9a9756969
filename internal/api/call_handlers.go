package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// defaultCallPageSize bounds call list pages.
const defaultCallPageSize = 50

// maxCallPageSize is the largest page a client may request.
const maxCallPageSize = 200

type callSummaryResponse struct {
	PublicID       string `json:"id"`
	ProviderCallID string `json:"provider_call_id"`
	FromNumber     string `json:"from_number"`
	ToNumber       string `json:"to_number"`
	RoutingStatus  string `json:"routing_status"`
	WentToTeam     bool   `json:"went_to_team"`
	TeamAnswered   bool   `json:"team_answered"`
	CreatedAt      string `json:"created_at"`
}

type callEventResponse struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Details   json.RawMessage `json:"details"`
}

type callDetailResponse struct {
	callSummaryResponse
	OrganizationID *int64              `json:"organization_id"`
	AgentID        *int64              `json:"agent_id"`
	PhoneLineID    *int64              `json:"phone_line_id"`
	Data           json.RawMessage     `json:"data"`
	Events         []callEventResponse `json:"events"`
}

type callListResponse struct {
	Items  []callSummaryResponse `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// callFlags derives the team-routing summary flags from the event ledger.
func callFlags(events []models.CallEvent) (wentToTeam, teamAnswered bool) {
	for _, e := range events {
		switch e.Type {
		case models.EventRoutingToTeam:
			wentToTeam = true
		case models.EventTeamAnswered, models.EventTeamCallCompleted:
			teamAnswered = true
		}
	}
	return wentToTeam, teamAnswered
}

func toCallSummary(call *models.Call, events []models.CallEvent) callSummaryResponse {
	wentToTeam, teamAnswered := callFlags(events)
	return callSummaryResponse{
		PublicID:       call.PublicID,
		ProviderCallID: call.ProviderCallID,
		FromNumber:     call.FromNumber,
		ToNumber:       call.ToNumber,
		RoutingStatus:  call.RoutingStatus,
		WentToTeam:     wentToTeam,
		TeamAnswered:   teamAnswered,
		CreatedAt:      call.CreatedAt.Format(time.RFC3339),
	}
}

// handleListCalls returns a filtered, paginated call history.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := database.CallListFilter{
		Limit:         defaultCallPageSize,
		Search:        q.Get("search"),
		RoutingStatus: q.Get("routing_status"),
	}

	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Limit = min(v, maxCallPageSize)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			filter.Offset = v
		}
	}
	if raw := q.Get("phone_line_id"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.PhoneLineID = v
		}
	}

	switch filter.RoutingStatus {
	case "", models.RoutingStatusDirectToAgent, models.RoutingStatusTransferredToTeam,
		models.RoutingStatusTeamNoAnswer, models.RoutingStatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, "invalid routing_status filter")
		return
	}

	calls, total, err := s.calls.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list calls: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]callSummaryResponse, len(calls))
	for i := range calls {
		events, err := s.calls.ListEvents(r.Context(), calls[i].ID)
		if err != nil {
			s.logger.Error("list calls: failed to query events", "error", err, "call_id", calls[i].ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		items[i] = toCallSummary(&calls[i], events)
	}

	writeJSON(w, http.StatusOK, callListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// handleGetCall returns one call with its full event timeline.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")

	call, err := s.calls.GetByPublicID(r.Context(), publicID)
	if err != nil {
		s.logger.Error("get call: failed to query", "error", err, "public_id", publicID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}

	events, err := s.calls.ListEvents(r.Context(), call.ID)
	if err != nil {
		s.logger.Error("get call: failed to query events", "error", err, "call_id", call.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	detail := callDetailResponse{
		callSummaryResponse: toCallSummary(call, events),
		OrganizationID:      call.OrganizationID,
		AgentID:             call.AgentID,
		PhoneLineID:         call.PhoneLineID,
		Data:                json.RawMessage(call.Data),
		Events:              make([]callEventResponse, len(events)),
	}
	if call.Data == "" {
		detail.Data = json.RawMessage("{}")
	}
	for i, e := range events {
		details := e.Details
		if details == "" {
			details = "{}"
		}
		detail.Events[i] = callEventResponse{
			Type:      e.Type,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Details:   json.RawMessage(details),
		}
	}

	writeJSON(w, http.StatusOK, detail)
}
