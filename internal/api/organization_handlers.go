package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

type organizationRequest struct {
	Name string `json:"name"`
}

type organizationResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toOrganizationResponse(org *models.Organization) organizationResponse {
	return organizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		CreatedAt: org.CreatedAt.Format(time.RFC3339),
		UpdatedAt: org.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.orgs.List(r.Context())
	if err != nil {
		s.logger.Error("list organizations: failed to query", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]organizationResponse, len(orgs))
	for i := range orgs {
		items[i] = toOrganizationResponse(&orgs[i])
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("name", req.Name, maxNameLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	org := &models.Organization{Name: req.Name}
	if err := s.orgs.Create(r.Context(), org); err != nil {
		s.logger.Error("create organization: failed to insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	created, err := s.orgs.GetByID(r.Context(), org.ID)
	if err != nil || created == nil {
		s.logger.Error("create organization: failed to re-fetch", "error", err, "organization_id", org.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("organization created", "organization_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, toOrganizationResponse(created))
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	org, err := s.orgs.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("get organization: failed to query", "error", err, "organization_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if org == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(org))
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	existing, err := s.orgs.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("update organization: failed to query", "error", err, "organization_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	var req organizationRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateRequiredStringLen("name", req.Name, maxNameLen); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	existing.Name = req.Name
	if err := s.orgs.Update(r.Context(), existing); err != nil {
		s.logger.Error("update organization: failed to update", "error", err, "organization_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationResponse(existing))
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization id")
		return
	}

	existing, err := s.orgs.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("delete organization: failed to query", "error", err, "organization_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}

	if err := s.orgs.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete organization: failed to delete", "error", err, "organization_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("organization deleted", "organization_id", id, "name", existing.Name)
	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam extracts and parses a numeric URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
