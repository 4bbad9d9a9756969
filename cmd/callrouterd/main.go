package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/api"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/api/middleware"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/config"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/costs"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/metrics"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/routing"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/telephony"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/voiceai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting call router",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"base_url", cfg.BaseURL,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orgs := database.NewOrganizationRepository(db)
	agents := database.NewAgentRepository(db)
	lines := database.NewPhoneLineRepository(db)
	schedules := database.NewRoutingScheduleRepository(db)
	calls := database.NewCallRepository(db)
	adminUsers := database.NewAdminUserRepository(db)

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Session store for admin auth.
	sessions := middleware.NewSessionStore()
	middleware.StartSessionPruner(appCtx, sessions, 15*time.Minute)

	// Routing core: schedule matcher, vendor forwarder, cost reconciler.
	matcher := routing.NewMatcher(schedules, cfg.DefaultTimezone, logger)
	forwarder := voiceai.NewClient(cfg.VendorAPIURL, 10*time.Second)

	var recorder routing.CostRecorder
	var reconciler *costs.Reconciler
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		fetcher := telephony.NewClient("", cfg.TwilioAccountSID, cfg.TwilioAuthToken)
		reconciler = costs.NewReconciler(calls, fetcher, logger)
		recorder = reconciler
	} else {
		slog.Warn("provider credentials not configured, cost reconciliation disabled")
	}

	stats := &routing.Stats{}
	router := routing.NewRouter(lines, calls, matcher, forwarder, recorder, stats,
		cfg.FallbackURL(), logger)

	// Metrics.
	startTime := time.Now()
	if err := prometheus.Register(metrics.NewCollector(calls, stats, startTime)); err != nil {
		slog.Error("failed to register metrics collector", "error", err)
		os.Exit(1)
	}

	adminLimit := middleware.NewIPRateLimiter(middleware.AdminRateLimitConfig())
	defer adminLimit.Stop()
	loginLimit := middleware.NewIPRateLimiter(middleware.LoginRateLimitConfig())
	defer loginLimit.Stop()

	handler := api.NewServer(api.ServerDeps{
		Config:        cfg,
		Organizations: orgs,
		Agents:        agents,
		PhoneLines:    lines,
		Schedules:     schedules,
		Calls:         calls,
		AdminUsers:    adminUsers,
		Router:        router,
		Matcher:       matcher,
		Sessions:      sessions,
		AdminLimit:    adminLimit,
		LoginLimit:    loginLimit,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// Let in-flight cost reconciliations finish.
	if reconciler != nil {
		reconciler.Wait()
	}

	slog.Info("call router stopped")
}
