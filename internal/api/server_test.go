package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/api/middleware"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/config"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/routing"
)

// fakeForwarder stands in for the voice-AI vendor endpoint.
type fakeForwarder struct {
	markup string
	err    error
	forms  []url.Values
}

func (f *fakeForwarder) ForwardInboundCall(_ context.Context, form url.Values) (string, error) {
	f.forms = append(f.forms, form)
	return f.markup, f.err
}

// testEnv wires a Server against a throwaway sqlite database.
type testEnv struct {
	srv       *Server
	lines     database.PhoneLineRepository
	agents    database.AgentRepository
	schedules database.RoutingScheduleRepository
	calls     database.CallRepository
	forwarder *fakeForwarder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	orgs := database.NewOrganizationRepository(db)
	agents := database.NewAgentRepository(db)
	lines := database.NewPhoneLineRepository(db)
	schedules := database.NewRoutingScheduleRepository(db)
	calls := database.NewCallRepository(db)
	adminUsers := database.NewAdminUserRepository(db)

	cfg := &config.Config{
		BaseURL:         "http://localhost:8080",
		DefaultTimezone: "Europe/London",
	}

	matcher := routing.NewMatcher(schedules, cfg.DefaultTimezone, logger)
	forwarder := &fakeForwarder{markup: `<?xml version="1.0" encoding="UTF-8"?><Response><Say>agent connected</Say></Response>`}
	router := routing.NewRouter(lines, calls, matcher, forwarder, nil, &routing.Stats{},
		cfg.FallbackURL(), logger)

	adminLimit := middleware.NewIPRateLimiter(middleware.AdminRateLimitConfig())
	t.Cleanup(adminLimit.Stop)
	loginLimit := middleware.NewIPRateLimiter(middleware.LoginRateLimitConfig())
	t.Cleanup(loginLimit.Stop)

	srv := NewServer(ServerDeps{
		Config:        cfg,
		Organizations: orgs,
		Agents:        agents,
		PhoneLines:    lines,
		Schedules:     schedules,
		Calls:         calls,
		AdminUsers:    adminUsers,
		Router:        router,
		Matcher:       matcher,
		Sessions:      middleware.NewSessionStore(),
		AdminLimit:    adminLimit,
		LoginLimit:    loginLimit,
		Logger:        logger,
	})

	return &testEnv{
		srv:       srv,
		lines:     lines,
		agents:    agents,
		schedules: schedules,
		calls:     calls,
		forwarder: forwarder,
	}
}

// authSession is an authenticated admin for request helpers.
type authSession struct {
	cookie *http.Cookie
	csrf   string
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

// jsonRequest sends a JSON admin API request, optionally authenticated.
func (e *testEnv) jsonRequest(t *testing.T, method, path string, body any, auth *authSession) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		req.AddCookie(auth.cookie)
		req.Header.Set("X-CSRF-Token", auth.csrf)
	}
	return e.do(req)
}

// formRequest posts a provider-style webhook form.
func (e *testEnv) formRequest(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// authenticate runs setup and login and returns the resulting session.
func (e *testEnv) authenticate(t *testing.T) *authSession {
	t.Helper()

	creds := map[string]string{"username": "admin", "password": "swordfish-123"}
	if rec := e.jsonRequest(t, http.MethodPost, "/api/v1/setup", creds, nil); rec.Code != http.StatusCreated {
		t.Fatalf("setup returned %d: %s", rec.Code, rec.Body.String())
	}

	rec := e.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", creds, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	auth := &authSession{}
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "callrouter_session":
			auth.cookie = c
		case "callrouter_csrf":
			auth.csrf = c.Value
		}
	}
	if auth.cookie == nil || auth.csrf == "" {
		t.Fatal("login did not set session and csrf cookies")
	}
	return auth
}

// seedLine creates an agent and a phone line bound to it.
func (e *testEnv) seedLine(t *testing.T, timeBasedRouting bool) *models.PhoneLine {
	t.Helper()
	ctx := context.Background()

	agent := &models.Agent{Name: "Receptionist", VendorAgentID: "va_123"}
	if err := e.agents.Create(ctx, agent); err != nil {
		t.Fatalf("creating agent: %v", err)
	}

	line := &models.PhoneLine{
		Number:           "+441111111111",
		Provider:         "twilio",
		AgentID:          &agent.ID,
		TimeBasedRouting: timeBasedRouting,
		Timezone:         "Europe/London",
	}
	if err := e.lines.Create(ctx, line); err != nil {
		t.Fatalf("creating phone line: %v", err)
	}
	return line
}

func incomingForm(callSid string) url.Values {
	return url.Values{
		"CallSid":    {callSid},
		"From":       {"+447700900123"},
		"To":         {"+441111111111"},
		"CallStatus": {"ringing"},
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestIncomingWebhookForwardsToAgent(t *testing.T) {
	e := newTestEnv(t)
	line := e.seedLine(t, false)

	rec := e.formRequest(fmt.Sprintf("/incoming/%d", line.ID), incomingForm("CA100"))

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook returned %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("Content-Type = %q, want text/xml", ct)
	}
	if rec.Body.String() != e.forwarder.markup {
		t.Errorf("body = %s, want vendor markup relayed verbatim", rec.Body.String())
	}

	call, err := e.calls.GetByProviderCallID(context.Background(), "CA100")
	if err != nil || call == nil {
		t.Fatalf("call record not created: %v", err)
	}
	if call.RoutingStatus != models.RoutingStatusDirectToAgent {
		t.Errorf("RoutingStatus = %q, want direct_to_agent", call.RoutingStatus)
	}
}

func TestIncomingWebhookMalformedLineID(t *testing.T) {
	e := newTestEnv(t)

	rec := e.formRequest("/incoming/notanumber", incomingForm("CA101"))

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must answer 200 even for garbage, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Say>We are sorry") {
		t.Errorf("expected apology markup, got %s", rec.Body.String())
	}
}

func TestIncomingWebhookUnknownLine(t *testing.T) {
	e := newTestEnv(t)

	rec := e.formRequest("/incoming/9999", incomingForm("CA102"))

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Say>We are sorry") {
		t.Errorf("expected apology markup, got %s", rec.Body.String())
	}
}

func TestIncomingWebhookMatchesSchedule(t *testing.T) {
	e := newTestEnv(t)
	line := e.seedLine(t, true)

	// Window covering every weekday and the whole day, so the match does not
	// depend on when the test runs.
	sched := &models.RoutingSchedule{
		PhoneLineID:          line.ID,
		Days:                 `[0,1,2,3,4,5,6]`,
		StartTime:            "00:00",
		EndTime:              "24:00",
		TransferToNumber:     "+441234567890",
		DialTimeout:          25,
		AgentFallbackEnabled: true,
		Enabled:              true,
	}
	if err := e.schedules.Create(context.Background(), sched); err != nil {
		t.Fatalf("creating schedule: %v", err)
	}

	rec := e.formRequest(fmt.Sprintf("/incoming/%d", line.ID), incomingForm("CA103"))

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook returned %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Dial") || !strings.Contains(body, "+441234567890") {
		t.Errorf("expected team dial markup, got %s", body)
	}
	if !strings.Contains(body, `action="http://localhost:8080/incoming/fallback"`) {
		t.Errorf("dial action should point at the fallback endpoint, got %s", body)
	}
	if len(e.forwarder.forms) != 0 {
		t.Error("vendor must not be contacted while transferring to the team")
	}
}

func TestDialOutcomeWebhookUnknownCall(t *testing.T) {
	e := newTestEnv(t)

	form := url.Values{
		"CallSid":        {"CAunknown"},
		"DialCallStatus": {"answered"},
	}
	rec := e.formRequest("/incoming/fallback", form)

	if rec.Code != http.StatusOK {
		t.Fatalf("webhook returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Errorf("expected empty response, got %s", rec.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	// Unauthenticated admin calls are rejected.
	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me returned %d, want 401", rec.Code)
	}

	// Weak passwords are rejected during setup.
	rec = e.jsonRequest(t, http.MethodPost, "/api/v1/setup",
		map[string]string{"username": "admin", "password": "short"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("setup with weak password returned %d, want 400", rec.Code)
	}

	auth := e.authenticate(t)

	// Setup is one-shot.
	rec = e.jsonRequest(t, http.MethodPost, "/api/v1/setup",
		map[string]string{"username": "intruder", "password": "hunter2hunter2"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second setup returned %d, want 409", rec.Code)
	}

	// Wrong password.
	rec = e.jsonRequest(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "admin", "password": "wrong-password"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login returned %d, want 401", rec.Code)
	}

	// Authenticated identity.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(auth.cookie)
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"username":"admin"`) {
		t.Errorf("unexpected me body: %s", rec.Body.String())
	}

	// State-changing requests need the CSRF header.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(auth.cookie)
	rec = e.do(req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("logout without csrf returned %d, want 403", rec.Code)
	}

	rec = e.jsonRequest(t, http.MethodPost, "/api/v1/auth/logout", nil, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d: %s", rec.Code, rec.Body.String())
	}

	// Session is gone.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(auth.cookie)
	if rec = e.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout returned %d, want 401", rec.Code)
	}
}

func TestScheduleValidation(t *testing.T) {
	e := newTestEnv(t)
	auth := e.authenticate(t)
	line := e.seedLine(t, true)

	base := fmt.Sprintf("/api/v1/phone-lines/%d/schedules", line.ID)

	valid := func() map[string]any {
		return map[string]any{
			"days":               []int{1, 2, 3, 4, 5},
			"start_time":         "09:00",
			"end_time":           "17:00",
			"transfer_to_number": "+441234567890",
		}
	}

	bad := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"start time not zero padded", func(m map[string]any) { m["start_time"] = "9:00" }},
		{"end before start", func(m map[string]any) { m["end_time"] = "08:00" }},
		{"day out of range", func(m map[string]any) { m["days"] = []int{1, 7} }},
		{"duplicate days", func(m map[string]any) { m["days"] = []int{1, 1} }},
		{"empty days", func(m map[string]any) { m["days"] = []int{} }},
		{"not e164", func(m map[string]any) { m["transfer_to_number"] = "01234 567890" }},
		{"dial timeout too small", func(m map[string]any) { m["dial_timeout"] = 2 }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			body := valid()
			tt.mutate(body)
			rec := e.jsonRequest(t, http.MethodPost, base, body, auth)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("returned %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	// Valid create, defaults applied.
	rec := e.jsonRequest(t, http.MethodPost, base, valid(), auth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"dial_timeout":30`, `"agent_fallback_enabled":true`, `"enabled":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("create response missing default %s: %s", want, body)
		}
	}

	// Overlapping enabled window is rejected.
	overlap := valid()
	overlap["start_time"] = "16:00"
	overlap["end_time"] = "18:00"
	rec = e.jsonRequest(t, http.MethodPost, base, overlap, auth)
	if rec.Code != http.StatusConflict {
		t.Errorf("overlapping create returned %d, want 409: %s", rec.Code, rec.Body.String())
	}

	// Same window disabled is allowed.
	overlap["enabled"] = false
	rec = e.jsonRequest(t, http.MethodPost, base, overlap, auth)
	if rec.Code != http.StatusCreated {
		t.Errorf("disabled overlapping create returned %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Adjacent half-open window is not an overlap.
	adjacent := valid()
	adjacent["start_time"] = "17:00"
	adjacent["end_time"] = "19:00"
	rec = e.jsonRequest(t, http.MethodPost, base, adjacent, auth)
	if rec.Code != http.StatusCreated {
		t.Errorf("adjacent create returned %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestCallHistoryEndpoints(t *testing.T) {
	e := newTestEnv(t)
	auth := e.authenticate(t)
	ctx := context.Background()

	call := &models.Call{
		PublicID:       "abc-123",
		ProviderCallID: "CA200",
		FromNumber:     "+447700900123",
		ToNumber:       "+441111111111",
		RoutingStatus:  models.RoutingStatusCompleted,
	}
	if err := e.calls.Create(ctx, call); err != nil {
		t.Fatalf("creating call: %v", err)
	}
	for _, eventType := range []string{
		models.EventIncomingCall, models.EventRoutingToTeam, models.EventTeamAnswered,
	} {
		if err := e.calls.AppendEvent(ctx, &models.CallEvent{CallID: call.ID, Type: eventType}); err != nil {
			t.Fatalf("appending event: %v", err)
		}
	}

	// Invalid filter value.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls?routing_status=bogus", nil)
	req.AddCookie(auth.cookie)
	if rec := e.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus filter returned %d, want 400", rec.Code)
	}

	// List derives team flags from the ledger.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/calls", nil)
	req.AddCookie(auth.cookie)
	rec := e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list calls returned %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"total":1`, `"went_to_team":true`, `"team_answered":true`} {
		if !strings.Contains(body, want) {
			t.Errorf("list response missing %s: %s", want, body)
		}
	}

	// Detail includes the event timeline.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/calls/abc-123", nil)
	req.AddCookie(auth.cookie)
	rec = e.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get call returned %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"type":"team_answered"`) {
		t.Errorf("detail response missing events: %s", rec.Body.String())
	}

	// Unknown call.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/calls/missing", nil)
	req.AddCookie(auth.cookie)
	if rec = e.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("unknown call returned %d, want 404", rec.Code)
	}
}
