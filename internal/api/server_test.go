package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/robotlan-core/internal/audit"
	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/database"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/logging"
	"github.com/nerrad567/robotlan-core/internal/registry"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/internal/session"
	"github.com/nerrad567/robotlan-core/internal/telemetry"
	"github.com/nerrad567/robotlan-core/migrations"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type fakeTransport struct {
	handlers session.Handlers

	mu       sync.Mutex
	commands []robot.Command
	extras   []map[string]any
	deltas   []map[string]any
}

func (t *fakeTransport) SendCommand(cmd robot.Command, extra map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands = append(t.commands, cmd)
	t.extras = append(t.extras, extra)
}

func (t *fakeTransport) SendDelta(partial map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deltas = append(t.deltas, partial)
}

func (t *fakeTransport) Close() {}

func (t *fakeTransport) lastCommand() (robot.Command, map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.commands) == 0 {
		return "", nil
	}
	return t.commands[len(t.commands)-1], t.extras[len(t.extras)-1]
}

func (t *fakeTransport) lastDelta() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.deltas) == 0 {
		return nil
	}
	return t.deltas[len(t.deltas)-1]
}

type fakeDialer struct {
	dialed chan *fakeTransport
}

func (d *fakeDialer) Dial(_ context.Context, _ string, _ robot.Identity, h session.Handlers) (session.Transport, error) {
	tr := &fakeTransport{handlers: h}
	d.dialed <- tr
	return tr, nil
}

type fakeDiscoverer struct {
	robots []discovery.Robot
}

func (f *fakeDiscoverer) Probe(context.Context, string) (discovery.Robot, error) {
	return discovery.Robot{}, discovery.ErrNoReply
}

func (f *fakeDiscoverer) FindRobot(context.Context, string) (discovery.Robot, error) {
	return discovery.Robot{}, discovery.ErrNotFound
}

func (f *fakeDiscoverer) Sweep(context.Context) ([]discovery.Robot, error) {
	return f.robots, nil
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

// ─── Helpers ───────────────────────────────────────────────────────

const testRobotID = "3145C61042726780"

const vacuumReport = `{"bin":{"present":true,"full":false},"batPct":90,` +
	`"featureFlags":{"childLockEnable":1},"childLock":false,` +
	`"lastCommand":{"command":"start","time":1700000000,"initiator":"rmtApp","regions":[{"region_id":"3"}]}}`

type testEnv struct {
	srv        *Server
	coord      *registry.Coordinator
	store      *registry.SQLiteStore
	dialer     *fakeDialer
	discoverer *fakeDiscoverer
	registry   *prometheus.Registry
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testTimings() session.Timings {
	return session.Timings{
		Settle:                20 * time.Millisecond,
		TypeValidationTimeout: 150 * time.Millisecond,
		TypeValidationPoll:    5 * time.Millisecond,
		Debounce:              10 * time.Millisecond,
		TransientDebounce:     200 * time.Millisecond,
		TransientWindow:       20 * time.Millisecond,
		ReconnectDelay:        time.Hour,
		DisconnectRetryDelay:  30 * time.Millisecond,
		InstallGrace:          time.Minute,
		VerifyTimeout:         300 * time.Millisecond,
	}
}

// testServer creates a Server over a coordinator backed by in-memory SQLite
// and a fake dialer. No robots are registered.
func testServer(t *testing.T, checks map[string]HealthChecker) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	env := &testEnv{
		store:      registry.NewSQLiteStore(db),
		dialer:     &fakeDialer{dialed: make(chan *fakeTransport, 16)},
		discoverer: &fakeDiscoverer{},
		registry:   prometheus.NewRegistry(),
	}
	env.coord = registry.NewCoordinator(env.store, env.discoverer,
		registry.WithDialer(env.dialer),
		registry.WithSessionOptions(session.WithTimings(testTimings())),
	)
	t.Cleanup(env.coord.Close)

	metrics := telemetry.NewMetrics()
	env.registry.MustRegister(metrics)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:      testLogger(),
		Coordinator: env.coord,
		Gatherer:    env.registry,
		Metrics:     metrics,
		Activity:    audit.NewSQLiteRepository(db.DB),
		Checks:      checks,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.srv = srv
	return env
}

func (e *testEnv) add(t *testing.T, id string, family robot.Family) *session.Session {
	t.Helper()
	s, err := e.coord.Add(robot.Identity{ID: id, Secret: "secret", Family: family},
		session.WithAddress("192.168.1.50"))
	if err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	return s
}

// connect registers a vacuum, starts the coordinator and delivers a report.
func (e *testEnv) connect(t *testing.T) (*session.Session, *fakeTransport) {
	t.Helper()
	s := e.add(t, testRobotID, robot.FamilyVacuum)
	e.coord.Start(context.Background())

	var tr *fakeTransport
	select {
	case tr = <-e.dialer.dialed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
	}
	tr.handlers.OnReport([]byte(vacuumReport))
	waitFor(t, "connected", func() bool {
		_, ok := s.Status()
		return ok && s.State().Phase == session.PhaseConnected
	})
	return s, tr
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_FailingCheck(t *testing.T) {
	env := testServer(t, map[string]HealthChecker{"mqtt": failingCheck{}})

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Checks["mqtt"] != "broker unreachable" {
		t.Errorf("checks[mqtt] = %q, want %q", resp.Checks["mqtt"], "broker unreachable")
	}
}

func TestHealth_ContentType(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	env := testServer(t, nil)
	router := env.srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, nil)
	router := env.srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t, nil)
	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// ─── Robot Tests ───────────────────────────────────────────────────

func TestListRobots(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, "B", robot.FamilyMop)
	env.add(t, "A", robot.FamilyVacuum)

	w := env.do(http.MethodGet, "/api/v1/robots", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Robots []RobotView `json:"robots"`
		Count  int         `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Robots[0].ID != "A" || resp.Robots[1].ID != "B" {
		t.Errorf("ids = %q, %q, want A, B", resp.Robots[0].ID, resp.Robots[1].ID)
	}

	hasEvac := func(cmds []robot.Command) bool {
		for _, c := range cmds {
			if c == robot.CommandEvac {
				return true
			}
		}
		return false
	}
	if !hasEvac(resp.Robots[0].Commands) {
		t.Errorf("vacuum commands = %v, want evac included", resp.Robots[0].Commands)
	}
	if hasEvac(resp.Robots[1].Commands) {
		t.Errorf("mop commands = %v, want no evac", resp.Robots[1].Commands)
	}
}

func TestGetRobot_NotFound(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(http.MethodGet, "/api/v1/robots/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp Error
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeNotFound)
	}
}

func TestGetRobot_StoredStatusIsStale(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	st := robot.Status{Cycle: robot.CycleClean, Phase: robot.PhaseRun, BatteryPercent: 55}
	snap := registry.StatusSnapshot{RobotID: testRobotID, Status: st, Derived: robot.Derive(st), Time: time.Now()}
	if err := env.store.SaveStatus(context.Background(), snap); err != nil {
		t.Fatalf("SaveStatus() error: %v", err)
	}

	w := env.do(http.MethodGet, "/api/v1/robots/"+testRobotID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var v RobotView
	decodeBody(t, w, &v)
	if !v.Stale {
		t.Error("stale = false, want true")
	}
	if v.Status == nil || v.Status.BatteryPercent != 55 {
		t.Errorf("status = %+v, want battery 55", v.Status)
	}
	if v.Derived == nil || v.Derived.Status != robot.StatusClean {
		t.Errorf("derived = %+v, want clean", v.Derived)
	}
	if v.Connection.Phase != session.PhaseDisconnected {
		t.Errorf("connection.phase = %v, want disconnected", v.Connection.Phase)
	}
}

func TestGetRobot_Live(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)

	w := env.do(http.MethodGet, "/api/v1/robots/"+testRobotID, "")

	var v RobotView
	decodeBody(t, w, &v)
	if v.Stale {
		t.Error("stale = true, want false")
	}
	if v.Status == nil || v.Status.BatteryPercent != 90 {
		t.Errorf("status = %+v, want battery 90", v.Status)
	}
	if v.Connection.Phase != session.PhaseConnected {
		t.Errorf("connection.phase = %v, want connected", v.Connection.Phase)
	}
	if v.Connection.ErrorCode == nil || *v.Connection.ErrorCode != 0 {
		t.Errorf("connection.error_code = %v, want 0", v.Connection.ErrorCode)
	}
}

func TestGetShadow(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)

	w := env.do(http.MethodGet, "/api/v1/robots/"+testRobotID+"/shadow", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var doc map[string]any
	decodeBody(t, w, &doc)
	if doc["batPct"] != float64(90) {
		t.Errorf("batPct = %v, want 90", doc["batPct"])
	}
}

// ─── Command Tests ─────────────────────────────────────────────────

func TestCommand_NotConnected(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/commands/dock", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}

	var resp Error
	decodeBody(t, w, &resp)
	if resp.Code != ErrCodeNotConnected {
		t.Errorf("code = %q, want %q", resp.Code, ErrCodeNotConnected)
	}
}

func TestCommand_Sent(t *testing.T) {
	env := testServer(t, nil)
	_, tr := env.connect(t)

	w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/commands/start", `{"ordered":1}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
	}

	cmd, extra := tr.lastCommand()
	if cmd != robot.CommandStart {
		t.Errorf("command = %q, want start", cmd)
	}
	if extra["ordered"] != float64(1) {
		t.Errorf("extra[ordered] = %v, want 1", extra["ordered"])
	}
}

func TestCommand_Errors(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"unsupported command", "/commands/fly", "", http.StatusUnprocessableEntity},
		{"invalid body", "/commands/start", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestControl(t *testing.T) {
	env := testServer(t, nil)
	_, tr := env.connect(t)

	w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/control/dockManually", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	if cmd, _ := tr.lastCommand(); cmd != robot.CommandDock {
		t.Errorf("command = %q, want dock", cmd)
	}

	tests := []struct {
		name     string
		target   string
		wantCode int
	}{
		{"unknown target", "flying", http.StatusBadRequest},
		{"no command reaches it", "stuck", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/control/"+tt.target, "")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

// ─── Option Tests ──────────────────────────────────────────────────

func TestListOptions(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)

	w := env.do(http.MethodGet, "/api/v1/robots/"+testRobotID+"/options", "")

	var resp struct {
		Supported []robot.Option `json:"supported"`
		Values    map[string]any `json:"values"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Supported) != 1 || resp.Supported[0] != robot.OptionChildLock {
		t.Errorf("supported = %v, want [childLock]", resp.Supported)
	}
	if resp.Values["childLock"] != false {
		t.Errorf("values[childLock] = %v, want false", resp.Values["childLock"])
	}
}

func TestSetOption(t *testing.T) {
	env := testServer(t, nil)
	_, tr := env.connect(t)

	w := env.do(http.MethodPut, "/api/v1/robots/"+testRobotID+"/options/childLock", `{"value":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	if got := tr.lastDelta(); got["childLock"] != true {
		t.Errorf("delta = %v, want childLock true", got)
	}
}

func TestSetOption_Errors(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)

	tests := []struct {
		name     string
		option   string
		body     string
		wantCode int
		wantErr  string
	}{
		{"unknown option", "turbo", `{"value":true}`, http.StatusUnprocessableEntity, ErrCodeUnsupported},
		{"unsupported by robot", "cleaningPassMode", `{"value":"twoPass"}`, http.StatusUnprocessableEntity, ErrCodeUnsupported},
		{"bad value", "childLock", `{"value":"maybe"}`, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"missing value", "childLock", `{}`, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/v1/robots/"+testRobotID+"/options/"+tt.option, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var resp Error
			decodeBody(t, w, &resp)
			if resp.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantErr)
			}
		})
	}
}

// ─── Connection Tests ──────────────────────────────────────────────

func TestDisableEnable(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	var resp struct {
		Changed    bool           `json:"changed"`
		Connection ConnectionView `json:"connection"`
	}

	w := env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/connection/disable", "")
	decodeBody(t, w, &resp)
	if !resp.Changed || !resp.Connection.Disabled {
		t.Errorf("disable = %+v, want changed and disabled", resp)
	}
	if resp.Connection.ErrorCode == nil || *resp.Connection.ErrorCode != session.ErrorCodeDisabled {
		t.Errorf("error_code = %v, want %d", resp.Connection.ErrorCode, session.ErrorCodeDisabled)
	}

	w = env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/connection/disable", "")
	decodeBody(t, w, &resp)
	if resp.Changed {
		t.Error("second disable changed = true, want false")
	}

	w = env.do(http.MethodPost, "/api/v1/robots/"+testRobotID+"/connection/enable", "")
	decodeBody(t, w, &resp)
	if !resp.Changed || resp.Connection.Disabled {
		t.Errorf("enable = %+v, want changed and not disabled", resp)
	}
}

// ─── Favorite Tests ────────────────────────────────────────────────

func TestFavorites_Lifecycle(t *testing.T) {
	env := testServer(t, nil)
	_, tr := env.connect(t)
	base := "/api/v1/robots/" + testRobotID + "/favorites"

	w := env.do(http.MethodPut, base, `{"name":"Kitchen"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, want %d (%s)", w.Code, http.StatusCreated, w.Body.String())
	}

	w = env.do(http.MethodPut, base, `{"name":"Kitchen"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate save status = %d, want %d", w.Code, http.StatusConflict)
	}

	w = env.do(http.MethodGet, base, "")
	var list struct {
		Favorites []robot.Favorite `json:"favorites"`
		Count     int              `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 1 || list.Favorites[0].Name != "Kitchen" {
		t.Fatalf("favorites = %+v, want [Kitchen]", list.Favorites)
	}

	w = env.do(http.MethodPost, base+"/kitchen/start", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	cmd, extra := tr.lastCommand()
	if cmd != robot.CommandStart {
		t.Errorf("command = %q, want start", cmd)
	}
	if _, ok := extra["regions"]; !ok {
		t.Errorf("extra = %v, want regions", extra)
	}

	w = env.do(http.MethodDelete, base+"/Kitchen", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = env.do(http.MethodDelete, base+"/Kitchen", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSaveFavorite_NoJob(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	w := env.do(http.MethodPut, "/api/v1/robots/"+testRobotID+"/favorites", `{"name":"Kitchen"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestSaveFavorite_MissingName(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	w := env.do(http.MethodPut, "/api/v1/robots/"+testRobotID+"/favorites", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Activity Tests ────────────────────────────────────────────────

func TestActivity_RecordsActions(t *testing.T) {
	env := testServer(t, nil)
	env.connect(t)
	base := "/api/v1/robots/" + testRobotID

	env.do(http.MethodPost, base+"/commands/start", "")
	env.do(http.MethodPost, base+"/commands/fly", "")
	env.do(http.MethodPost, base+"/connection/disable", "")

	w := env.do(http.MethodGet, "/api/v1/activity", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
	}
	var all audit.ListResult
	decodeBody(t, w, &all)
	if all.Total != 3 {
		t.Fatalf("total = %d, want 3", all.Total)
	}
	if all.Entries[0].Action != audit.ActionDisable {
		t.Errorf("newest action = %q, want %q", all.Entries[0].Action, audit.ActionDisable)
	}
	if got := all.Entries[1]; got.Outcome != audit.OutcomeRejected || got.Details["command"] != "fly" {
		t.Errorf("rejected entry = %+v, want outcome rejected for fly", got)
	}
	if got := all.Entries[2]; got.Outcome != audit.OutcomeAccepted || got.Source != activitySource {
		t.Errorf("accepted entry = %+v, want accepted from api", got)
	}

	w = env.do(http.MethodGet, base+"/activity?action=command", "")
	var commands audit.ListResult
	decodeBody(t, w, &commands)
	if commands.Total != 2 {
		t.Errorf("command total = %d, want 2", commands.Total)
	}
}

func TestActivity_Errors(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"invalid limit", "/api/v1/activity?limit=many", http.StatusBadRequest},
		{"invalid offset", "/api/v1/activity?offset=-x", http.StatusBadRequest},
		{"unknown robot", "/api/v1/robots/NOPE/activity", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(http.MethodGet, tt.path, ""); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}

	env.srv.activity = nil
	if w := env.do(http.MethodGet, "/api/v1/activity", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without log = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Discovery and Metrics Tests ───────────────────────────────────

func TestDiscover(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, testRobotID, robot.FamilyVacuum)
	env.discoverer.robots = []discovery.Robot{
		{ID: testRobotID, Address: "192.168.1.50", Name: "Upstairs"},
		{ID: "OTHER", Address: "192.168.1.51", Name: "Garage"},
	}

	w := env.do(http.MethodPost, "/api/v1/discover", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Robots []struct {
			ID         string `json:"id"`
			Address    string `json:"address"`
			Registered bool   `json:"registered"`
		} `json:"robots"`
		Count int `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if !resp.Robots[0].Registered || resp.Robots[1].Registered {
		t.Errorf("registered = %v, %v, want true, false", resp.Robots[0].Registered, resp.Robots[1].Registered)
	}
	if resp.Robots[1].Address != "192.168.1.51" {
		t.Errorf("address = %q, want 192.168.1.51", resp.Robots[1].Address)
	}

	w = env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "robotlan_discovery_robots_found 2") {
		t.Errorf("metrics body missing robotlan_discovery_robots_found 2:\n%s", w.Body.String())
	}
}

func TestSystem(t *testing.T) {
	env := testServer(t, nil)
	env.add(t, "A", robot.FamilyVacuum)
	s := env.add(t, "B", robot.FamilyVacuum)
	s.Disable("test")

	w := env.do(http.MethodGet, "/api/v1/system", "")

	var resp SystemMetrics
	decodeBody(t, w, &resp)
	if resp.Robots.Total != 2 {
		t.Errorf("robots.total = %d, want 2", resp.Robots.Total)
	}
	if resp.Robots.Disabled != 1 {
		t.Errorf("robots.disabled = %d, want 1", resp.Robots.Disabled)
	}
	if resp.Robots.ByPhase["cannot_connect"] != 1 {
		t.Errorf("robots.by_phase[cannot_connect] = %d, want 1", resp.Robots.ByPhase["cannot_connect"])
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelStatus: {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStatus, testRobotID, map[string]any{"battery": 80})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != ChannelStatus {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, ChannelStatus)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelUnexpected: {}},
	}
	hub.Register(client)

	hub.Broadcast(ChannelStatus, testRobotID, map[string]any{"battery": 80})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_RobotFilter(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	client.subscribe(WSSubscribePayload{Channels: []string{ChannelStatus}, Robots: []string{testRobotID}})

	hub.Broadcast(ChannelStatus, "OTHER", nil)
	hub.Broadcast(ChannelStatus, testRobotID, nil)

	select {
	case msg := <-client.send:
		var got WSMessage
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.RobotID != testRobotID {
			t.Errorf("robot_id = %q, want %q", got.RobotID, testRobotID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
	select {
	case msg := <-client.send:
		t.Errorf("unexpected second message %s", msg)
	default:
	}

	client.unsubscribe([]string{ChannelStatus})
	if client.wants(ChannelStatus, testRobotID) {
		t.Error("wants() = true after unsubscribing the last channel")
	}
}

func TestWSClient_Requests(t *testing.T) {
	hub := newTestHub(t)

	tests := []struct {
		name     string
		request  string
		wantType string
	}{
		{"ping", `{"type":"ping","id":"p"}`, WSTypePong},
		{"subscribe", `{"type":"subscribe","id":"s","payload":{"channels":["robot.status"]}}`, WSTypeResponse},
		{"unknown channel", `{"type":"subscribe","id":"s","payload":{"channels":["robot.battery"]}}`, WSTypeError},
		{"no channels", `{"type":"subscribe","id":"s","payload":{"channels":[]}}`, WSTypeError},
		{"missing payload", `{"type":"unsubscribe","id":"u"}`, WSTypeError},
		{"unknown type", `{"type":"publish","id":"x"}`, WSTypeError},
		{"invalid json", `{`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &WSClient{
				hub:           hub,
				send:          make(chan []byte, wsSendBufferSize),
				subscriptions: make(map[string]struct{}),
			}
			client.handleRequest([]byte(tt.request))

			select {
			case msg := <-client.send:
				var got WSMessage
				if err := json.Unmarshal(msg, &got); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if got.Type != tt.wantType {
					t.Errorf("reply type = %q, want %q (%s)", got.Type, tt.wantType, msg)
				}
			default:
				t.Fatal("no reply queued")
			}
		})
	}
}

func TestWSClient_SendAfterClose(t *testing.T) {
	hub := newTestHub(t)
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelStatus: {}},
	}
	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client)

	// Neither call may panic on the closed queue.
	client.trySend([]byte("x"))
	hub.Broadcast(ChannelStatus, testRobotID, nil)
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_Relay(t *testing.T) {
	hub := newTestHub(t)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelConnection: {}},
	}
	hub.Register(client)

	events := make(chan session.Event, 1)
	done := make(chan struct{})
	go func() {
		hub.Relay(context.Background(), events)
		close(done)
	}()

	events <- session.ConnectionChanged{
		Meta:  session.Meta{Robot: testRobotID, Time: time.Now()},
		State: session.ConnectionState{Phase: session.PhaseCannotConnect, Reason: session.ReasonCannotDiscover},
	}
	close(events)

	select {
	case msg := <-client.send:
		var got struct {
			EventType string         `json:"event_type"`
			Payload   ConnectionView `json:"payload"`
		}
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.EventType != ChannelConnection {
			t.Errorf("event_type = %q, want %q", got.EventType, ChannelConnection)
		}
		if got.Payload.Reason != session.ReasonCannotDiscover {
			t.Errorf("reason = %v, want cannot_discover", got.Payload.Reason)
		}
		if got.Payload.ErrorCode == nil || *got.Payload.ErrorCode != session.ErrorCodeCannotDiscover {
			t.Errorf("error_code = %v, want %d", got.Payload.ErrorCode, session.ErrorCodeCannotDiscover)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relayed event")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Relay did not return after the channel closed")
	}
}

// ─── Server Lifecycle Tests ────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	env := testServer(t, nil)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v, want nil", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestWebSocket_ConnectionEvents(t *testing.T) {
	env := testServer(t, nil)
	sess, _ := env.connect(t)

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { env.srv.Close() }) //nolint:errcheck // Test cleanup

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+env.srv.Addr()+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	sub, _ := json.Marshal(WSMessage{ //nolint:errcheck // Static message
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelConnection}},
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	read := func() WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg WSMessage
		if err := json.NewDecoder(bytes.NewReader(data)).Decode(&msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("subscribe reply = %+v, want response with id 1", msg)
	}

	sess.Disable("test")

	msg := read()
	if msg.Type != WSTypeEvent || msg.EventType != ChannelConnection {
		t.Fatalf("event = %+v, want %s event", msg, ChannelConnection)
	}
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // Checked below
	if payload["reason"] != "connection_disabled_by_user" {
		t.Errorf("reason = %v, want connection_disabled_by_user", payload["reason"])
	}
	if payload["robot_id"] != testRobotID {
		t.Errorf("robot_id = %v, want %s", payload["robot_id"], testRobotID)
	}
}
