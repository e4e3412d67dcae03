package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/devdash/internal/domain"
	"github.com/MrSnakeDoc/devdash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/devdash/internal/index"
	"github.com/MrSnakeDoc/devdash/internal/lifecycle"
	"github.com/MrSnakeDoc/devdash/internal/logger"
	"github.com/MrSnakeDoc/devdash/internal/metrics"
	"github.com/MrSnakeDoc/devdash/internal/readiness"
	redisstore "github.com/MrSnakeDoc/devdash/internal/store/redis"
)

type fakeController struct {
	mu      sync.Mutex
	calls   []string
	failFor map[domain.ServiceName]error
}

func (f *fakeController) record(op string, d domain.ServiceDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+d.Name.String())
	return f.failFor[d.Name]
}

func (f *fakeController) IsRunning(ctx context.Context, d domain.ServiceDescriptor) (bool, error) {
	return true, nil
}

func (f *fakeController) Start(ctx context.Context, d domain.ServiceDescriptor) error {
	return f.record("start", d)
}

func (f *fakeController) Stop(ctx context.Context, d domain.ServiceDescriptor) error {
	return f.record("stop", d)
}

type fakeGroup struct{ upErr error }

func (g *fakeGroup) Up(ctx context.Context) error   { return g.upErr }
func (g *fakeGroup) Down(ctx context.Context) error { return nil }

type fakePoller struct{ up bool }

func (p *fakePoller) PollAll(ctx context.Context) domain.Snapshot {
	return domain.NewSnapshot([]domain.ServiceStatus{
		{Name: domain.ServiceAPI, Running: p.up, Source: domain.SourceContainer},
		{Name: domain.ServiceDatabase, Running: p.up, Source: domain.SourceContainer},
	}, time.Now())
}

type healthy struct{}

func (healthy) Probe(context.Context, domain.ServiceDescriptor) bool { return true }

type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []redisstore.Run
}

func (f *fakeRuns) Record(ctx context.Context, run redisstore.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append([]redisstore.Run{run}, f.runs...)
	return nil
}

func (f *fakeRuns) Recent(ctx context.Context, n int) ([]redisstore.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.runs) {
		n = len(f.runs)
	}
	return append([]redisstore.Run(nil), f.runs[:n]...), nil
}

func (f *fakeRuns) Ping(ctx context.Context) error { return nil }

type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (c *countingRefresher) Trigger() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return true
}

type fixture struct {
	ctrl    *fakeController
	group   *fakeGroup
	poller  *fakePoller
	runs    *fakeRuns
	watcher *countingRefresher
	index   *index.MemoryIndex
	deps    deps.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctrl:    &fakeController{},
		group:   &fakeGroup{},
		poller:  &fakePoller{up: true},
		runs:    &fakeRuns{},
		watcher: &countingRefresher{},
		index:   index.NewMemoryIndex(),
	}

	m := metrics.New("devdash_test")
	commander := lifecycle.New(lifecycle.Deps{
		Registry:   domain.DefaultRegistry(),
		Controller: f.ctrl,
		Group:      f.group,
		Poller:     f.poller,
		Health:     healthy{},
		Gate:       readiness.Config{Interval: time.Second, ContainerAttempts: 3, APIAttempts: 3},
		Clock:      &instantClock{},
		Metrics:    m,
	})

	f.deps = deps.Deps{
		Logger:         logger.NewNop(),
		StartTime:      time.Now(),
		Version:        "test",
		RequestTimeout: 5 * time.Second,
		StackUpTimeout: 5 * time.Second,
		SeedTimeout:    5 * time.Second,
		Commander:      commander,
		MemoryIndex:    f.index,
		Watcher:        f.watcher,
		Runs:           f.runs,
		Metrics:        m,
	}
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(f.deps.Logger, f.deps).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestReadyzReportsComponents(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	components := body["components"].(map[string]any)
	assert.Contains(t, components, "redis")
	assert.Contains(t, components, "watcher")
}

func TestStatusLive(t *testing.T) {
	f := newFixture(t)
	f.poller.up = false

	rec := f.do(t, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["all_running"])
	assert.Equal(t, false, body["cached"])
	services := body["services"].(map[string]any)
	assert.Equal(t, false, services["api"])
}

func TestStatusCached(t *testing.T) {
	f := newFixture(t)
	f.index.Update(domain.NewSnapshot([]domain.ServiceStatus{{Name: domain.ServiceCache, Running: true}}, time.Now()))

	rec := f.do(t, http.MethodGet, "/api/status?cached=true")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, map[string]any{"cache": true}, body["services"])
}

func TestServiceActions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/services/cache/stop")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"stop:cache"}, f.ctrl.calls)
	assert.Equal(t, 1, f.watcher.count)

	rec = f.do(t, http.MethodPost, "/api/services/nonexistent/start")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["category"])
	assert.Len(t, f.ctrl.calls, 1)
}

func TestStopAllPartial(t *testing.T) {
	f := newFixture(t)
	f.ctrl.failFor = map[domain.ServiceName]error{
		domain.ServiceDatabase: &domain.CommandError{Op: "stop", Service: "postgres"},
	}

	rec := f.do(t, http.MethodPost, "/api/stack/stop")
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["complete"])
	assert.Contains(t, body["failed"], "database")
	assert.Equal(t, "partial_failure", body["category"])
}

func TestStackUpReady(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stack/up")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	outcome := body["outcome"].(map[string]any)
	assert.Equal(t, "READY", outcome["state"])

	_, err := uuid.Parse(body["run_id"].(string))
	assert.NoError(t, err)
	require.Len(t, f.runs.runs, 1)
	assert.Equal(t, domain.StateReady, f.runs.runs[0].Outcome.State)

	rec = f.do(t, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode(t, rec)["runs"].([]any)
	assert.Len(t, runs, 1)
}

func TestStackUpToolUnavailable(t *testing.T) {
	f := newFixture(t)
	f.group.upErr = &domain.ToolUnavailableError{Tool: "docker"}

	rec := f.do(t, http.MethodPost, "/api/stack/up")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "FAILED", body["outcome"].(map[string]any)["state"])
	assert.Equal(t, "tool_unavailable", body["category"])
	assert.Len(t, f.runs.runs, 1)
}

func TestStackUpTimedOut(t *testing.T) {
	f := newFixture(t)
	f.poller.up = false

	rec := f.do(t, http.MethodPost, "/api/stack/up")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "TIMED_OUT", decode(t, rec)["outcome"].(map[string]any)["state"])
}

func TestSeedNotConfigured(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/stack/seed")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRunsDisabled(t *testing.T) {
	f := newFixture(t)
	f.deps.Runs = nil

	rec := f.do(t, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["enabled"])
	assert.Empty(t, body["runs"])
}

func TestMutatingRoutesRejectForeignCallers(t *testing.T) {
	f := newFixture(t)
	f.deps.AllowedCIDRS = []string{"127.0.0.1/32"}

	// httptest requests come from 192.0.2.1
	rec := f.do(t, http.MethodPost, "/api/stack/down")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/status")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/status/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.watcher.count)

	f.deps.Watcher = nil
	rec = f.do(t, http.MethodPost, "/api/status/refresh")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/services/cache/start")

	rec := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "devdash_test_"), "metrics should use the namespace")
}

func TestWriteTimeoutCoversStackUp(t *testing.T) {
	d := deps.Deps{StackUpTimeout: 5 * time.Minute}
	assert.Equal(t, 5*time.Minute+writeMargin, writeTimeout(d))
	assert.Equal(t, 30*time.Second+writeMargin, writeTimeout(deps.Deps{}))
}
