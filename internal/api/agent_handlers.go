package api

import (
	"net/http"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

type agentRequest struct {
	Name           string `json:"name"`
	VendorAgentID  string `json:"vendor_agent_id"`
	OrganizationID *int64 `json:"organization_id"`
}

type agentResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	VendorAgentID  string `json:"vendor_agent_id"`
	OrganizationID *int64 `json:"organization_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toAgentResponse(a *models.Agent) agentResponse {
	return agentResponse{
		ID:             a.ID,
		Name:           a.Name,
		VendorAgentID:  a.VendorAgentID,
		OrganizationID: a.OrganizationID,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339),
	}
}

// validateAgentRequest checks fields shared by create and update.
func (s *Server) validateAgentRequest(r *http.Request, req *agentRequest) string {
	if errMsg := validateRequiredStringLen("name", req.Name, maxNameLen); errMsg != "" {
		return errMsg
	}
	if errMsg := validateRequiredStringLen("vendor_agent_id", req.VendorAgentID, maxNameLen); errMsg != "" {
		return errMsg
	}
	if req.OrganizationID != nil {
		org, err := s.orgs.GetByID(r.Context(), *req.OrganizationID)
		if err != nil {
			s.logger.Error("agent validation: failed to query organization", "error", err)
			return "internal error"
		}
		if org == nil {
			return "organization not found"
		}
	}
	return ""
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.List(r.Context())
	if err != nil {
		s.logger.Error("list agents: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]agentResponse, len(agents))
	for i := range agents {
		items[i] = toAgentResponse(&agents[i])
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateAgentRequest(r, &req); errMsg != "" {
		status := http.StatusBadRequest
		if errMsg == "internal error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errMsg)
		return
	}

	agent := &models.Agent{
		Name:           req.Name,
		VendorAgentID:  req.VendorAgentID,
		OrganizationID: req.OrganizationID,
	}
	if err := s.agents.Create(r.Context(), agent); err != nil {
		s.logger.Error("create agent: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.agents.GetByID(r.Context(), agent.ID)
	if err != nil || created == nil {
		s.logger.Error("create agent: failed to re-fetch", "error", err, "agent_id", agent.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("agent created", "agent_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, toAgentResponse(created))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	agent, err := s.agents.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("get agent: failed to query", "error", err, "agent_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if agent == nil {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	existing, err := s.agents.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("update agent: failed to query", "error", err, "agent_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	var req agentRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := s.validateAgentRequest(r, &req); errMsg != "" {
		status := http.StatusBadRequest
		if errMsg == "internal error" {
			status = http.StatusInternalServerError
		}
		writeError(w, status, errMsg)
		return
	}

	existing.Name = req.Name
	existing.VendorAgentID = req.VendorAgentID
	existing.OrganizationID = req.OrganizationID

	if err := s.agents.Update(r.Context(), existing); err != nil {
		s.logger.Error("update agent: failed to update", "error", err, "agent_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toAgentResponse(existing))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	existing, err := s.agents.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("delete agent: failed to query", "error", err, "agent_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	if err := s.agents.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete agent: failed to delete", "error", err, "agent_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("agent deleted", "agent_id", id, "name", existing.Name)
	w.WriteHeader(http.StatusNoContent)
}
