package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/twiml"
)

// dialFields are the Dial-specific form fields the telephony provider adds
// to the fallback webhook. They are stripped before the payload is forwarded
// to the vendor's inbound endpoint, which expects an initial-call shape.
var dialFields = []string{
	"DialCallStatus",
	"DialCallSid",
	"DialBridged",
	"DialCallDuration",
	"DialCallDurationUnits",
}

// AgentForwarder hands the signaling payload to the voice-AI vendor's inbound
// endpoint and returns the vendor's markup verbatim.
type AgentForwarder interface {
	ForwardInboundCall(ctx context.Context, form url.Values) (string, error)
}

// CostRecorder reconciles the provider's billed cost for a finished call.
// Implementations must not block: the router invokes this on the webhook
// response path.
type CostRecorder interface {
	RecordCompletedCall(providerCallID string)
}

// Stats holds router counters sampled by the metrics collector.
type Stats struct {
	scheduleMatches       atomic.Int64
	vendorForwardFailures atomic.Int64
	apologies             atomic.Int64
}

// ScheduleMatchCount returns how many inbound calls matched a transfer schedule.
func (s *Stats) ScheduleMatchCount() int64 { return s.scheduleMatches.Load() }

// VendorForwardFailureCount returns how many vendor forwards failed.
func (s *Stats) VendorForwardFailureCount() int64 { return s.vendorForwardFailures.Load() }

// ApologyCount returns how many webhook responses degraded to an apology.
func (s *Stats) ApologyCount() int64 { return s.apologies.Load() }

// Router is the webhook-driven state machine that chooses initial routing for
// an inbound call and decides the fallback action after a team dial.
//
// Every method returns rendered signaling markup and never an error: all
// internal failures degrade to an apology or to direct-to-agent routing so
// the telephony provider always receives a well-formed 200 response.
type Router struct {
	lines       database.PhoneLineRepository
	calls       database.CallRepository
	matcher     *Matcher
	forwarder   AgentForwarder
	costs       CostRecorder
	stats       *Stats
	fallbackURL string
	logger      *slog.Logger
}

// NewRouter creates the call router. fallbackURL is the absolute URL the
// provider calls with the team-dial outcome. costs may be nil to disable
// cost reconciliation.
func NewRouter(
	lines database.PhoneLineRepository,
	calls database.CallRepository,
	matcher *Matcher,
	forwarder AgentForwarder,
	costs CostRecorder,
	stats *Stats,
	fallbackURL string,
	logger *slog.Logger,
) *Router {
	return &Router{
		lines:       lines,
		calls:       calls,
		matcher:     matcher,
		forwarder:   forwarder,
		costs:       costs,
		stats:       stats,
		fallbackURL: fallbackURL,
		logger:      logger.With("component", "call_router"),
	}
}

// HandleIncoming processes the initial inbound webhook for a phone line and
// returns the signaling markup to send back to the provider.
func (r *Router) HandleIncoming(ctx context.Context, lineID int64, form url.Values) string {
	callSid := form.Get("CallSid")
	from := form.Get("From")
	to := form.Get("To")

	log := r.logger.With("line_id", lineID, "provider_call_id", callSid)

	line, err := r.lines.GetByID(ctx, lineID)
	if err != nil {
		log.Error("phone line lookup failed", "error", err)
		return r.apology()
	}
	if line == nil {
		log.Warn("inbound call for unknown phone line")
		return r.apology()
	}
	if line.AgentID == nil {
		log.Warn("inbound call on line with no agent assigned")
		if r.stats != nil {
			r.stats.apologies.Add(1)
		}
		return twiml.SayHangup("No agent is assigned to this number. Goodbye.")
	}

	call := r.recordCall(ctx, line, callSid, from, to)

	sched := (*models.RoutingSchedule)(nil)
	if line.TimeBasedRouting {
		sched = r.matcher.FindMatchingSchedule(ctx, line)
	}

	if sched == nil {
		// No transfer window applies: route straight to the AI agent.
		r.appendEvent(ctx, call, models.EventIncomingCall, map[string]any{"from": from, "to": to})
		r.appendEvent(ctx, call, models.EventRoutingToAgent, nil)
		return r.forwardToAgent(ctx, log, form)
	}

	if r.stats != nil {
		r.stats.scheduleMatches.Add(1)
	}

	r.setStatus(ctx, call, models.RoutingStatusTransferredToTeam)
	r.appendEvent(ctx, call, models.EventIncomingCall, map[string]any{"from": from, "to": to})
	r.appendEvent(ctx, call, models.EventRoutingToTeam, map[string]any{
		"schedule_id":        sched.ID,
		"transfer_to_number": sched.TransferToNumber,
		"dial_timeout":       sched.DialTimeout,
	})

	log.Info("routing inbound call to team",
		"schedule_id", sched.ID,
		"transfer_to_number", sched.TransferToNumber,
	)
	return twiml.Transfer(sched.TransferToNumber, r.fallbackURL, sched.DialTimeout)
}

// HandleDialOutcome processes the fallback webhook carrying the team-dial
// outcome and returns the signaling markup to send back to the provider.
func (r *Router) HandleDialOutcome(ctx context.Context, form url.Values) string {
	callSid := form.Get("CallSid")
	dialStatus := form.Get("DialCallStatus")

	log := r.logger.With("provider_call_id", callSid, "dial_status", dialStatus)

	call, err := r.calls.GetByProviderCallID(ctx, callSid)
	if err != nil {
		log.Error("call lookup failed, failing open", "error", err)
		call = nil
	}

	switch dialStatus {
	case "answered":
		if call == nil {
			log.Warn("dial outcome for unknown call")
			return twiml.Empty()
		}
		r.appendEvent(ctx, call, models.EventTeamAnswered, nil)
		r.setStatus(ctx, call, models.RoutingStatusCompleted)
		return twiml.Empty()

	case "completed":
		if call == nil {
			// Lost state: the call record is gone but the caller is still on
			// the line. Forward to the agent rather than erroring.
			log.Warn("completed outcome for unknown call, forwarding to agent")
			return r.forwardToAgent(ctx, log, sanitizeForForward(form))
		}
		r.appendEvent(ctx, call, models.EventTeamCallCompleted, nil)
		r.setStatus(ctx, call, models.RoutingStatusCompleted)
		if r.costs != nil {
			r.costs.RecordCompletedCall(callSid)
		}
		return twiml.Empty()

	case "no-answer", "busy", "failed":
		return r.handleTeamMiss(ctx, log, call, form)

	default:
		log.Warn("unknown dial status, treating as team miss")
		return r.handleTeamMiss(ctx, log, call, form)
	}
}

// handleTeamMiss handles the team not picking up: either fall back to the AI
// agent or hang up, depending on the schedule active right now.
func (r *Router) handleTeamMiss(ctx context.Context, log *slog.Logger, call *models.Call, form url.Values) string {
	if call == nil {
		log.Warn("team miss for unknown call, forwarding to agent")
		return r.forwardToAgent(ctx, log, sanitizeForForward(form))
	}

	r.appendEvent(ctx, call, models.EventTeamNoAnswer, map[string]any{
		"dial_status": form.Get("DialCallStatus"),
	})

	// A retried webhook delivery that already forwarded must not ring the
	// agent a second time.
	forwarded, err := r.calls.HasEvent(ctx, call.ID, models.EventRoutingToAgent)
	if err != nil {
		log.Error("idempotency check failed, proceeding", "error", err)
	} else if forwarded {
		log.Warn("duplicate fallback delivery, skipping agent forward")
		return twiml.Empty()
	}

	// Re-check the schedule against "now": the window active at call start
	// may have closed while the team phone rang.
	fallbackEnabled := true
	if line := r.lineForCall(ctx, log, call); line != nil && line.TimeBasedRouting {
		if sched := r.matcher.FindMatchingSchedule(ctx, line); sched != nil {
			fallbackEnabled = sched.AgentFallbackEnabled
		}
	}

	r.setStatus(ctx, call, models.RoutingStatusTeamNoAnswer)

	if !fallbackEnabled {
		log.Info("team missed call, agent fallback disabled, hanging up")
		return twiml.HangupResponse()
	}

	r.appendEvent(ctx, call, models.EventRoutingToAgent, map[string]any{"fallback": true})
	log.Info("team missed call, falling back to agent")
	return r.forwardToAgent(ctx, log, sanitizeForForward(form))
}

// forwardToAgent posts the signaling payload to the vendor's inbound endpoint
// and relays the vendor's markup verbatim. Vendor failure degrades to an
// apology so the provider never sees an error response.
func (r *Router) forwardToAgent(ctx context.Context, log *slog.Logger, form url.Values) string {
	markup, err := r.forwarder.ForwardInboundCall(ctx, form)
	if err != nil {
		log.Error("vendor forward failed", "error", err)
		if r.stats != nil {
			r.stats.vendorForwardFailures.Add(1)
		}
		return r.apology()
	}
	return markup
}

// recordCall creates the call record for an inbound webhook. Creation failure
// (including a unique-constraint hit from a retried delivery) falls back to
// re-fetching the existing record; the call proceeds either way.
func (r *Router) recordCall(ctx context.Context, line *models.PhoneLine, callSid, from, to string) *models.Call {
	call := &models.Call{
		PublicID:       uuid.NewString(),
		OrganizationID: line.OrganizationID,
		AgentID:        line.AgentID,
		PhoneLineID:    &line.ID,
		ProviderCallID: callSid,
		FromNumber:     from,
		ToNumber:       to,
		RoutingStatus:  models.RoutingStatusDirectToAgent,
	}
	if err := r.calls.Create(ctx, call); err != nil {
		r.logger.Error("call record creation failed", "provider_call_id", callSid, "error", err)
		existing, getErr := r.calls.GetByProviderCallID(ctx, callSid)
		if getErr != nil || existing == nil {
			return nil
		}
		return existing
	}
	return call
}

// appendEvent writes one ledger entry. Failures are logged and swallowed:
// losing an audit event must not drop the call.
func (r *Router) appendEvent(ctx context.Context, call *models.Call, eventType string, details map[string]any) {
	if call == nil {
		return
	}
	detailsJSON := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	err := r.calls.AppendEvent(ctx, &models.CallEvent{
		CallID:  call.ID,
		Type:    eventType,
		Details: detailsJSON,
	})
	if err != nil {
		r.logger.Error("event append failed",
			"call_id", call.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// setStatus updates the call's routing status, logging and swallowing errors.
func (r *Router) setStatus(ctx context.Context, call *models.Call, status string) {
	if call == nil {
		return
	}
	if err := r.calls.UpdateRoutingStatus(ctx, call.ID, status); err != nil {
		r.logger.Error("routing status update failed",
			"call_id", call.ID,
			"status", status,
			"error", err,
		)
	}
}

func (r *Router) lineForCall(ctx context.Context, log *slog.Logger, call *models.Call) *models.PhoneLine {
	if call.PhoneLineID == nil {
		return nil
	}
	line, err := r.lines.GetByID(ctx, *call.PhoneLineID)
	if err != nil {
		log.Error("phone line lookup failed, failing open", "error", err)
		return nil
	}
	return line
}

// apology renders the spoken-apology response, counting it for metrics.
func (r *Router) apology() string {
	if r.stats != nil {
		r.stats.apologies.Add(1)
	}
	return twiml.Apology()
}

// sanitizeForForward strips the provider's Dial-specific fields and forces
// CallStatus back to ringing so the vendor treats the payload as a fresh
// inbound call.
func sanitizeForForward(form url.Values) url.Values {
	out := url.Values{}
	for k, vs := range form {
		out[k] = append([]string(nil), vs...)
	}
	for _, f := range dialFields {
		out.Del(f)
	}
	out.Set("CallStatus", "ringing")
	return out
}
