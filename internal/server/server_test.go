package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/config"
	"github.com/jonathan/easy-apply-agent/internal/db"
	"github.com/jonathan/easy-apply-agent/internal/logging"
	"github.com/jonathan/easy-apply-agent/internal/registry"
	"github.com/jonathan/easy-apply-agent/internal/server/ratelimit"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

type fakeStore struct {
	profiles map[string]*types.CandidateProfile
	apps     []db.Application
	runs     []db.AutomationRun
	listErr  error

	mu        sync.Mutex
	lastLimit int
}

func (f *fakeStore) LoadProfile(_ context.Context, caller string, _ db.Sealer) (*types.CandidateProfile, *types.Credentials, error) {
	p, ok := f.profiles[caller]
	if !ok {
		return nil, nil, db.ErrProfileNotFound
	}
	return p, types.NewCredentials(p.Email, "secret"), nil
}

func (f *fakeStore) ListApplications(_ context.Context, _ string, limit int) ([]db.Application, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	return f.apps, f.listErr
}

func (f *fakeStore) ListRuns(_ context.Context, _ string, limit int) ([]db.AutomationRun, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	return f.runs, f.listErr
}

// fakeRunner blocks until released or stopped, then reports one status event.
type fakeRunner struct {
	release chan struct{}
	got     chan automation.Request
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{release: make(chan struct{}), got: make(chan automation.Request, 4)}
}

func (f *fakeRunner) Run(ctx context.Context, req automation.Request, sink types.StatusSink) (*types.RunResult, error) {
	f.got <- req
	select {
	case <-f.release:
	case <-req.Stop:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	sink.Emit(types.StatusEvent{Type: types.EventStatus, Message: "Applying to Engineer at Acme"})
	return &types.RunResult{Jobs: []types.ApplicationRecord{}}, nil
}

type testEnv struct {
	server   *Server
	store    *fakeStore
	runner   *fakeRunner
	registry *registry.Registry
	jwt      *JWTService
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	log := logging.Discard()
	env := &testEnv{
		store: &fakeStore{profiles: map[string]*types.CandidateProfile{
			"alice": {Name: "Alice Doe", Email: "alice@example.com", ResumePath: "resume.pdf"},
		}},
		runner:   newFakeRunner(),
		registry: registry.New(2, log),
		jwt: NewJWTService(&config.JWTConfig{
			Secret:          "test-secret-key-for-jwt-signing",
			ExpirationHours: 1,
			Issuer:          config.DefaultJWTIssuer,
		}),
	}
	env.server = New(Config{KeepAlive: time.Hour}, Deps{
		Store:       env.store,
		Runner:      env.runner,
		Registry:    env.registry,
		Auth:        env.jwt.AsTokenValidator(),
		RateLimiter: limiter,
	}, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		close(env.runner.release)
		_ = env.registry.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		token, err := e.jwt.GenerateToken(caller)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/runs"},
		{http.MethodPost, "/runs/stop"},
		{http.MethodGet, "/runs/active"},
		{http.MethodGet, "/runs/events"},
		{http.MethodGet, "/runs"},
		{http.MethodGet, "/applications"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := env.do(t, route.method, route.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestStartRun_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"title":"Go Engineer","location":"Berlin","limit":5}`

	w := env.do(t, http.MethodPost, "/runs", "alice", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var started StartRunResponse
	decode(t, w, &started)
	assert.Equal(t, "started", started.Status)
	_, err := uuid.Parse(started.RunID)
	require.NoError(t, err)

	req := <-env.runner.got
	assert.Equal(t, "alice", req.Caller)
	assert.Equal(t, types.RunRequest{Title: "Go Engineer", Location: "Berlin", Limit: 5}, req.Search)
	assert.Equal(t, "Alice Doe", req.Profile.Name)
	assert.Equal(t, "alice@example.com", req.Credentials.Identity)

	w = env.do(t, http.MethodPost, "/runs", "alice", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/runs/active", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var active ActiveRunResponse
	decode(t, w, &active)
	assert.Equal(t, started.RunID, active.RunID)
	assert.False(t, active.Stopping)

	h, ok := env.registry.Active("alice")
	require.True(t, ok)

	w = env.do(t, http.MethodPost, "/runs/stop", "alice", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var stopped StartRunResponse
	decode(t, w, &stopped)
	assert.Equal(t, "stopping", stopped.Status)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}

	w = env.do(t, http.MethodGet, "/runs/active", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPost, "/runs/stop", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRun_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "zero limit", body: `{"title":"Go","location":"Remote","limit":0}`},
		{name: "limit above cap", body: `{"title":"Go","location":"Remote","limit":101}`},
		{name: "missing title", body: `{"location":"Remote","limit":3}`},
		{name: "missing location", body: `{"title":"Go","limit":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/runs", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Zero(t, env.registry.Len())
}

func TestStartRun_MissingProfile(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/runs", "bob", `{"title":"Go","location":"Remote","limit":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.registry.Len())
}

func TestRunEvents_StreamsUntilTerminal(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	w := env.do(t, http.MethodPost, "/runs", "alice", `{"title":"Go","location":"Remote","limit":1}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	<-env.runner.got

	token, err := env.jwt.GenerateToken("alice")
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/runs/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	var last types.StatusEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name := strings.TrimPrefix(line, "event: ")
			events = append(events, name)
			if name == "run" {
				env.runner.release <- struct{}{}
			}
		case strings.HasPrefix(line, "data: ") && len(events) > 0 && events[len(events)-1] != "run":
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last))
		}
	}

	assert.Equal(t, []string{"run", "status", "complete"}, events)
	assert.Equal(t, types.EventComplete, last.Type)
	assert.Equal(t, "Automation completed: applied to 0 jobs", last.Message)
	require.NotNil(t, last.Results)
	assert.Zero(t, last.Results.AppliedJobs)
}

func TestRunEvents_NoActiveRun(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/runs/events", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListApplications(t *testing.T) {
	env := newTestEnv(t, nil)
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	env.store.apps = []db.Application{
		{ID: uuid.New(), JobID: "42", Title: "Go Engineer", Company: "Acme", Status: types.StatusApplied, AppliedAt: at},
	}

	w := env.do(t, http.MethodGet, "/applications?limit=10", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Applications []map[string]any `json:"applications"`
		Count        int              `json:"count"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Go Engineer", resp.Applications[0]["jobTitle"])
	assert.Equal(t, "Applied", resp.Applications[0]["status"])
	assert.Equal(t, 10, env.store.lastLimit)

	w = env.do(t, http.MethodGet, "/applications", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultListLimit, env.store.lastLimit)

	w = env.do(t, http.MethodGet, "/applications?limit=0", "alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.runs = []db.AutomationRun{
		{ID: uuid.New(), Caller: "alice", Status: db.RunStatusCompleted, Applied: 3},
	}

	w := env.do(t, http.MethodGet, "/runs", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Runs  []db.AutomationRun `json:"runs"`
		Count int                `json:"count"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 3, resp.Runs[0].Applied)

	env.store.listErr = errors.New("connection refused")
	w = env.do(t, http.MethodGet, "/runs", "alice", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/runs", Method: http.MethodPost, Limit: 1, Window: time.Hour, Burst: 1},
		},
	})
	defer limiter.Stop()
	env := newTestEnv(t, limiter)
	body := `{"title":"Go","location":"Remote","limit":1}`

	w := env.do(t, http.MethodPost, "/runs", "bob", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = env.do(t, http.MethodPost, "/runs", "bob", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = env.do(t, http.MethodPost, "/runs", "carol", body)
	assert.Equal(t, http.StatusNotFound, w.Code, "limits are per caller")
}
