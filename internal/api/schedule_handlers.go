package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// scheduleRequest is the JSON body for creating/updating a routing schedule.
type scheduleRequest struct {
	Days                 json.RawMessage `json:"days"`
	StartTime            string          `json:"start_time"`
	EndTime              string          `json:"end_time"`
	TransferToNumber     string          `json:"transfer_to_number"`
	DialTimeout          *int            `json:"dial_timeout"`
	AgentFallbackEnabled *bool           `json:"agent_fallback_enabled"`
	Enabled              *bool           `json:"enabled"`
}

type scheduleResponse struct {
	ID                   int64           `json:"id"`
	PhoneLineID          int64           `json:"phone_line_id"`
	Days                 json.RawMessage `json:"days"`
	StartTime            string          `json:"start_time"`
	EndTime              string          `json:"end_time"`
	TransferToNumber     string          `json:"transfer_to_number"`
	DialTimeout          int             `json:"dial_timeout"`
	AgentFallbackEnabled bool            `json:"agent_fallback_enabled"`
	Enabled              bool            `json:"enabled"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
}

func toScheduleResponse(sched *models.RoutingSchedule) scheduleResponse {
	resp := scheduleResponse{
		ID:                   sched.ID,
		PhoneLineID:          sched.PhoneLineID,
		Days:                 json.RawMessage(sched.Days),
		StartTime:            sched.StartTime,
		EndTime:              sched.EndTime,
		TransferToNumber:     sched.TransferToNumber,
		DialTimeout:          sched.DialTimeout,
		AgentFallbackEnabled: sched.AgentFallbackEnabled,
		Enabled:              sched.Enabled,
		CreatedAt:            sched.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            sched.UpdatedAt.Format(time.RFC3339),
	}
	if sched.Days == "" {
		resp.Days = json.RawMessage("[]")
	}
	return resp
}

// validateScheduleRequest checks field shapes shared by create and update.
func validateScheduleRequest(req scheduleRequest) string {
	if errMsg := validateDays("days", req.Days); errMsg != "" {
		return errMsg
	}
	if errMsg := validateHHMM("start_time", req.StartTime); errMsg != "" {
		return errMsg
	}
	if errMsg := validateHHMM("end_time", req.EndTime); errMsg != "" {
		return errMsg
	}
	if req.StartTime >= req.EndTime {
		return "end_time must be after start_time"
	}
	if errMsg := validateE164("transfer_to_number", req.TransferToNumber); errMsg != "" {
		return errMsg
	}
	if req.DialTimeout != nil && (*req.DialTimeout < 5 || *req.DialTimeout > 600) {
		return "dial_timeout must be between 5 and 600 seconds"
	}
	return ""
}

// scheduleFromRequest builds the model with defaults applied.
func scheduleFromRequest(phoneLineID int64, req scheduleRequest) *models.RoutingSchedule {
	sched := &models.RoutingSchedule{
		PhoneLineID:          phoneLineID,
		Days:                 string(req.Days),
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		TransferToNumber:     req.TransferToNumber,
		DialTimeout:          30,
		AgentFallbackEnabled: true,
		Enabled:              true,
	}
	if req.DialTimeout != nil {
		sched.DialTimeout = *req.DialTimeout
	}
	if req.AgentFallbackEnabled != nil {
		sched.AgentFallbackEnabled = *req.AgentFallbackEnabled
	}
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}
	return sched
}

// fetchPhoneLine loads the parent line for a schedule route, writing the
// error response itself. Returns nil when the request is already answered.
func (s *Server) fetchPhoneLine(w http.ResponseWriter, r *http.Request) *models.PhoneLine {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone line id")
		return nil
	}

	line, err := s.lines.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("schedule route: failed to query phone line", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if line == nil {
		writeError(w, http.StatusNotFound, "phone line not found")
		return nil
	}
	return line
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	line := s.fetchPhoneLine(w, r)
	if line == nil {
		return
	}

	scheds, err := s.schedules.ListByLine(r.Context(), line.ID)
	if err != nil {
		s.logger.Error("list schedules: failed to query", "error", err, "phone_line_id", line.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]scheduleResponse, len(scheds))
	for i := range scheds {
		items[i] = toScheduleResponse(&scheds[i])
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	line := s.fetchPhoneLine(w, r)
	if line == nil {
		return
	}

	var req scheduleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateScheduleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	sched := scheduleFromRequest(line.ID, req)

	// Overlapping enabled windows would make routing depend on evaluation
	// order, so they are rejected outright.
	if sched.Enabled {
		overlaps, err := s.matcher.ValidateOverlap(r.Context(), sched, 0)
		if err != nil {
			s.logger.Error("create schedule: overlap check failed", "error", err, "phone_line_id", line.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if overlaps {
			writeError(w, http.StatusConflict, "schedule overlaps an existing enabled schedule")
			return
		}
	}

	if err := s.schedules.Create(r.Context(), sched); err != nil {
		s.logger.Error("create schedule: failed to insert", "error", err, "phone_line_id", line.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.schedules.GetByID(r.Context(), sched.ID)
	if err != nil || created == nil {
		s.logger.Error("create schedule: failed to re-fetch", "error", err, "schedule_id", sched.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("routing schedule created",
		"schedule_id", created.ID,
		"phone_line_id", line.ID,
		"transfer_to_number", created.TransferToNumber,
	)
	writeJSON(w, http.StatusCreated, toScheduleResponse(created))
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	line := s.fetchPhoneLine(w, r)
	if line == nil {
		return
	}

	scheduleID, err := parseIDParam(r, "scheduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	existing, err := s.schedules.GetByID(r.Context(), scheduleID)
	if err != nil {
		s.logger.Error("update schedule: failed to query", "error", err, "schedule_id", scheduleID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil || existing.PhoneLineID != line.ID {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	var req scheduleRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateScheduleRequest(req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	updated := scheduleFromRequest(line.ID, req)
	updated.ID = existing.ID

	if updated.Enabled {
		overlaps, err := s.matcher.ValidateOverlap(r.Context(), updated, existing.ID)
		if err != nil {
			s.logger.Error("update schedule: overlap check failed", "error", err, "schedule_id", existing.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if overlaps {
			writeError(w, http.StatusConflict, "schedule overlaps an existing enabled schedule")
			return
		}
	}

	if err := s.schedules.Update(r.Context(), updated); err != nil {
		s.logger.Error("update schedule: failed to update", "error", err, "schedule_id", existing.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	fresh, err := s.schedules.GetByID(r.Context(), existing.ID)
	if err != nil || fresh == nil {
		s.logger.Error("update schedule: failed to re-fetch", "error", err, "schedule_id", existing.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toScheduleResponse(fresh))
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	line := s.fetchPhoneLine(w, r)
	if line == nil {
		return
	}

	scheduleID, err := parseIDParam(r, "scheduleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	existing, err := s.schedules.GetByID(r.Context(), scheduleID)
	if err != nil {
		s.logger.Error("delete schedule: failed to query", "error", err, "schedule_id", scheduleID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil || existing.PhoneLineID != line.ID {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}

	if err := s.schedules.Delete(r.Context(), scheduleID); err != nil {
		s.logger.Error("delete schedule: failed to delete", "error", err, "schedule_id", scheduleID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("routing schedule deleted", "schedule_id", scheduleID, "phone_line_id", line.ID)
	w.WriteHeader(http.StatusNoContent)
}
