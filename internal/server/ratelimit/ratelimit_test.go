package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time       { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg *Config) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = c.now
	return l, c
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		ok, info := l.Allow("10.0.0.1", "/applications", "GET")
		require.True(t, ok, "request %d", i+1)
		assert.Equal(t, 5, info.Limit)
		assert.Equal(t, 4-i, info.Remaining)
	}

	ok, info := l.Allow("10.0.0.1", "/applications", "GET")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, 12.0, info.RetryAfter.Seconds(), 0.01)
}

func TestLimiter_Refill(t *testing.T) {
	l, c := newTestLimiter(&Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})
	defer l.Stop()

	l.Allow("a", "/runs/active", "GET")
	l.Allow("a", "/runs/active", "GET")
	ok, _ := l.Allow("a", "/runs/active", "GET")
	require.False(t, ok)

	c.add(31 * time.Second)
	ok, _ = l.Allow("a", "/runs/active", "GET")
	assert.True(t, ok)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer l.Stop()

	ok, _ := l.Allow("a", "/runs", "GET")
	require.True(t, ok)
	ok, _ = l.Allow("b", "/runs", "GET")
	assert.True(t, ok)
	ok, _ = l.Allow("a", "/runs", "GET")
	assert.False(t, ok)
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	cfg := &Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
	l, _ := newTestLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("caller", "/runs", "POST")
		require.True(t, ok)
	}
	ok, info := l.Allow("caller", "/runs", "POST")
	assert.False(t, ok)
	assert.Equal(t, 20, info.Limit)

	ok, _ = l.Allow("caller", "/runs", "GET")
	assert.True(t, ok, "reads use the default limit")
}

func TestLimiter_AllowAndDenyLists(t *testing.T) {
	cfg := &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Allowlist:     map[string]bool{"ops": true},
		Denylist:      map[string]bool{"abuser": true},
	}
	l, _ := newTestLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("ops", "/runs", "GET")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("abuser", "/runs", "GET")
	assert.False(t, ok)
}

func TestLimiter_DisabledAndHealth(t *testing.T) {
	off, _ := newTestLimiter(&Config{Enabled: false})
	for i := 0; i < 10; i++ {
		ok, _ := off.Allow("a", "/runs", "POST")
		assert.True(t, ok)
	}

	l, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	defer l.Stop()
	for i := 0; i < 10; i++ {
		ok, info := l.Allow("a", "/health", "GET")
		assert.True(t, ok)
		assert.Zero(t, info.Limit)
	}
	assert.Zero(t, l.Len())
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, c := newTestLimiter(&Config{Enabled: true, DefaultLimit: 5, DefaultWindow: time.Minute, IdleTTL: time.Hour})
	defer l.Stop()

	l.Allow("old", "/runs", "GET")
	c.add(2 * time.Hour)
	l.Allow("new", "/runs", "GET")
	require.Equal(t, 2, l.Len())

	l.evictIdle()
	assert.Equal(t, 1, l.Len())
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/runs", Method: "POST", Limit: 1},
		{Path: "/runs/", Method: "POST", Limit: 2},
	}

	tests := []struct {
		name   string
		path   string
		method string
		limit  int
		isNil  bool
	}{
		{name: "exact", path: "/runs", method: "POST", limit: 1},
		{name: "prefix", path: "/runs/stop", method: "POST", limit: 2},
		{name: "method mismatch", path: "/runs", method: "GET", isNil: true},
		{name: "health unlimited", path: "/health", method: "GET", limit: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.isNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.limit, got.Limit)
		})
	}
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l := NewLimiter(nil)
	defer l.Stop()
	ok, info := l.Allow("a", "/runs", "GET")
	assert.True(t, ok)
	assert.Equal(t, 1000, info.Limit)
	l.Stop()
}
