// Package api exposes the HTTP surface of the call router: the telephony
// provider's webhook endpoints and the JSON admin API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/api/middleware"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/config"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/routing"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	mux *chi.Mux
	cfg *config.Config

	orgs       database.OrganizationRepository
	agents     database.AgentRepository
	lines      database.PhoneLineRepository
	schedules  database.RoutingScheduleRepository
	calls      database.CallRepository
	adminUsers database.AdminUserRepository

	router   *routing.Router
	matcher  *routing.Matcher
	sessions *middleware.SessionStore
	logger   *slog.Logger
}

// ServerDeps bundles the dependencies for NewServer.
type ServerDeps struct {
	Config        *config.Config
	Organizations database.OrganizationRepository
	Agents        database.AgentRepository
	PhoneLines    database.PhoneLineRepository
	Schedules     database.RoutingScheduleRepository
	Calls         database.CallRepository
	AdminUsers    database.AdminUserRepository
	Router        *routing.Router
	Matcher       *routing.Matcher
	Sessions      *middleware.SessionStore
	AdminLimit    *middleware.IPRateLimiter
	LoginLimit    *middleware.IPRateLimiter
	Logger        *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		mux:        chi.NewRouter(),
		cfg:        deps.Config,
		orgs:       deps.Organizations,
		agents:     deps.Agents,
		lines:      deps.PhoneLines,
		schedules:  deps.Schedules,
		calls:      deps.Calls,
		adminUsers: deps.AdminUsers,
		router:     deps.Router,
		matcher:    deps.Matcher,
		sessions:   deps.Sessions,
		logger:     deps.Logger.With("component", "api"),
	}

	s.routes(deps.AdminLimit, deps.LoginLimit)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes configures the middleware stack and mounts all route groups.
func (s *Server) routes(adminLimit, loginLimit *middleware.IPRateLimiter) {
	r := s.mux

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recoverer(s.logger))

	// Provider webhooks. Deliberately outside the rate limiter and CORS: a
	// rejected webhook is a dropped live call.
	r.Route("/incoming", func(r chi.Router) {
		r.Post("/fallback", s.handleDialOutcomeWebhook)
		r.Post("/{lineID}", s.handleIncomingWebhook)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Admin API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.ParseOrigins(s.cfg.CORSOrigins)))

		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(loginLimit, s.logger))
			r.Post("/setup", s.handleSetup)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(adminLimit, s.logger))
			r.Use(middleware.RequireAuth(s.sessions))

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", s.handleListOrganizations)
				r.Post("/", s.handleCreateOrganization)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetOrganization)
					r.Put("/", s.handleUpdateOrganization)
					r.Delete("/", s.handleDeleteOrganization)
				})
			})

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", s.handleListAgents)
				r.Post("/", s.handleCreateAgent)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAgent)
					r.Put("/", s.handleUpdateAgent)
					r.Delete("/", s.handleDeleteAgent)
				})
			})

			r.Route("/phone-lines", func(r chi.Router) {
				r.Get("/", s.handleListPhoneLines)
				r.Post("/", s.handleCreatePhoneLine)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPhoneLine)
					r.Put("/", s.handleUpdatePhoneLine)
					r.Delete("/", s.handleDeletePhoneLine)

					r.Route("/schedules", func(r chi.Router) {
						r.Get("/", s.handleListSchedules)
						r.Post("/", s.handleCreateSchedule)
						r.Route("/{scheduleID}", func(r chi.Router) {
							r.Put("/", s.handleUpdateSchedule)
							r.Delete("/", s.handleDeleteSchedule)
						})
					})
				})
			})

			r.Route("/calls", func(r chi.Router) {
				r.Get("/", s.handleListCalls)
				r.Get("/{publicID}", s.handleGetCall)
			})
		})
	})
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
