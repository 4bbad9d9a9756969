package api

import (
	"net/http"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/api/middleware"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
)

// setupRequest creates the first admin user on a fresh install.
type setupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// adminUserResponse is the JSON shape for the current admin user.
type adminUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// handleSetup creates the first admin user. It only works while no admin
// users exist, so an open fresh install cannot be hijacked after setup.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	count, err := s.adminUsers.Count(r.Context())
	if err != nil {
		s.logger.Error("setup: failed to count admin users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count > 0 {
		writeError(w, http.StatusConflict, "setup already completed")
		return
	}

	var req setupRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validateUsername("username", req.Username); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if errMsg := validatePassword("password", req.Password); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	hash, err := database.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("setup: failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &models.AdminUser{Username: req.Username, PasswordHash: hash}
	if err := s.adminUsers.Create(r.Context(), user); err != nil {
		s.logger.Error("setup: failed to create admin user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("initial admin user created", "username", user.Username)
	writeJSON(w, http.StatusCreated, adminUserResponse{ID: user.ID, Username: user.Username})
}

// handleLogin verifies credentials and opens a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	user, err := s.adminUsers.GetByUsername(r.Context(), req.Username)
	if err != nil {
		s.logger.Error("login: failed to query admin user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	ok, err := database.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("login: failed to verify password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		s.logger.Warn("login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sess, err := s.sessions.Create(user.ID, user.Username)
	if err != nil {
		s.logger.Error("login: failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	middleware.SetSessionCookies(w, sess, s.cfg.SecureCookies())
	s.logger.Info("admin logged in", "username", user.Username)
	writeJSON(w, http.StatusOK, adminUserResponse{ID: user.ID, Username: user.Username})
}

// handleLogout closes the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.SessionIDFromRequest(r); id != "" {
		s.sessions.Delete(id)
	}
	middleware.ClearSessionCookies(w, s.cfg.SecureCookies())
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the authenticated admin user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.AdminUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, adminUserResponse{ID: user.ID, Username: user.Username})
}
