package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

type phoneLineRequest struct {
	Number           string `json:"number"`
	AgentID          *int64 `json:"agent_id"`
	OrganizationID   *int64 `json:"organization_id"`
	TimeBasedRouting bool   `json:"time_based_routing"`
	Timezone         string `json:"timezone"`
}

type phoneLineResponse struct {
	ID               int64  `json:"id"`
	Number           string `json:"number"`
	Provider         string `json:"provider"`
	AgentID          *int64 `json:"agent_id"`
	OrganizationID   *int64 `json:"organization_id"`
	TimeBasedRouting bool   `json:"time_based_routing"`
	Timezone         string `json:"timezone"`
	WebhookPath      string `json:"webhook_path"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func (s *Server) toPhoneLineResponse(line *models.PhoneLine) phoneLineResponse {
	return phoneLineResponse{
		ID:               line.ID,
		Number:           line.Number,
		Provider:         line.Provider,
		AgentID:          line.AgentID,
		OrganizationID:   line.OrganizationID,
		TimeBasedRouting: line.TimeBasedRouting,
		Timezone:         line.Timezone,
		WebhookPath:      "/incoming/" + strconv.FormatInt(line.ID, 10),
		CreatedAt:        line.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        line.UpdatedAt.Format(time.RFC3339),
	}
}

// validatePhoneLineRequest checks fields shared by create and update.
func (s *Server) validatePhoneLineRequest(r *http.Request, req *phoneLineRequest) string {
	if errMsg := validateE164("number", req.Number); errMsg != "" {
		return errMsg
	}
	if errMsg := validateTimezone("timezone", req.Timezone); errMsg != "" {
		return errMsg
	}
	if req.AgentID != nil {
		agent, err := s.agents.GetByID(r.Context(), *req.AgentID)
		if err != nil {
			s.logger.Error("phone line validation: failed to query agent", "error", err)
			return "internal error"
		}
		if agent == nil {
			return "agent not found"
		}
	}
	if req.OrganizationID != nil {
		org, err := s.orgs.GetByID(r.Context(), *req.OrganizationID)
		if err != nil {
			s.logger.Error("phone line validation: failed to query organization", "error", err)
			return "internal error"
		}
		if org == nil {
			return "organization not found"
		}
	}
	return ""
}

func (s *Server) handleListPhoneLines(w http.ResponseWriter, r *http.Request) {
	lines, err := s.lines.List(r.Context())
	if err != nil {
		s.logger.Error("list phone lines: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]phoneLineResponse, len(lines))
	for i := range lines {
		items[i] = s.toPhoneLineResponse(&lines[i])
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreatePhoneLine(w http.ResponseWriter, r *http.Request) {
	var req phoneLineRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validatePhoneLineRequest(r, &req); errMsg != "" {
		status := http.StatusBadRequest
		if errMsg == "internal error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errMsg)
		return
	}

	existing, err := s.lines.GetByNumber(r.Context(), req.Number)
	if err != nil {
		s.logger.Error("create phone line: failed to check number", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "number already registered")
		return
	}

	line := &models.PhoneLine{
		Number:           req.Number,
		Provider:         "twilio",
		AgentID:          req.AgentID,
		OrganizationID:   req.OrganizationID,
		TimeBasedRouting: req.TimeBasedRouting,
		Timezone:         req.Timezone,
	}
	if line.Timezone == "" {
		line.Timezone = s.cfg.DefaultTimezone
	}

	if err := s.lines.Create(r.Context(), line); err != nil {
		s.logger.Error("create phone line: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.lines.GetByID(r.Context(), line.ID)
	if err != nil || created == nil {
		s.logger.Error("create phone line: failed to re-fetch", "error", err, "phone_line_id", line.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("phone line created", "phone_line_id", created.ID, "number", created.Number)
	writeJSON(w, http.StatusCreated, s.toPhoneLineResponse(created))
}

func (s *Server) handleGetPhoneLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone line id")
		return
	}

	line, err := s.lines.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("get phone line: failed to query", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if line == nil {
		writeError(w, http.StatusNotFound, "phone line not found")
		return
	}
	writeJSON(w, http.StatusOK, s.toPhoneLineResponse(line))
}

func (s *Server) handleUpdatePhoneLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone line id")
		return
	}

	existing, err := s.lines.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("update phone line: failed to query", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "phone line not found")
		return
	}

	var req phoneLineRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validatePhoneLineRequest(r, &req); errMsg != "" {
		status := http.StatusBadRequest
		if errMsg == "internal error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errMsg)
		return
	}

	if req.Number != existing.Number {
		dup, err := s.lines.GetByNumber(r.Context(), req.Number)
		if err != nil {
			s.logger.Error("update phone line: failed to check number", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if dup != nil {
			writeError(w, http.StatusConflict, "number already registered")
			return
		}
	}

	existing.Number = req.Number
	existing.AgentID = req.AgentID
	existing.OrganizationID = req.OrganizationID
	existing.TimeBasedRouting = req.TimeBasedRouting
	if req.Timezone != "" {
		existing.Timezone = req.Timezone
	}

	if err := s.lines.Update(r.Context(), existing); err != nil {
		s.logger.Error("update phone line: failed to update", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, s.toPhoneLineResponse(existing))
}

func (s *Server) handleDeletePhoneLine(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone line id")
		return
	}

	existing, err := s.lines.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("delete phone line: failed to query", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "phone line not found")
		return
	}

	if err := s.lines.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete phone line: failed to delete", "error", err, "phone_line_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("phone line deleted", "phone_line_id", id, "number", existing.Number)
	w.WriteHeader(http.StatusNoContent)
}
