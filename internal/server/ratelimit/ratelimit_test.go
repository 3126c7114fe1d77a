package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Whitelist:     make(map[string]bool),
		Blacklist:     make(map[string]bool),
		EndpointConfigs: []EndpointConfig{
			{Path: "/reports", Method: "POST", Limit: 2, Window: time.Hour, Burst: 2},
			{Path: "/reports/", Method: "GET", Limit: 100, Window: time.Minute, Burst: 10},
		},
	}
}

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	allowed, info := l.Allow("1.2.3.4", "/reports", "POST")
	assert.True(t, allowed)
	assert.Equal(t, 2, info.Limit)

	allowed, _ = l.Allow("1.2.3.4", "/reports", "POST")
	assert.True(t, allowed)

	allowed, info = l.Allow("1.2.3.4", "/reports", "POST")
	assert.False(t, allowed, "burst exhausted")
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/reports", "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("5.6.7.8", "/reports", "POST")
	assert.True(t, allowed, "another client has its own bucket")
}

func TestLimiter_PrefixMatch(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	allowed, info := l.Allow("1.2.3.4", "/reports/abc-123", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 100, info.Limit)
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("1.2.3.4", "/health", "GET")
		require.True(t, allowed)
		assert.Equal(t, 0, info.Limit)
	}
}

func TestLimiter_EventStreamIsUnlimited(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	allowed, info := l.Allow("1.2.3.4", "/reports/abc-123/events", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 0, info.Limit)
}

func TestLimiter_Blacklist(t *testing.T) {
	cfg := testConfig()
	cfg.Blacklist["6.6.6.6"] = true
	l := NewLimiter(cfg)
	defer l.Stop()

	allowed, _ := l.Allow("6.6.6.6", "/reports", "POST")
	assert.False(t, allowed)
}

func TestLimiter_Whitelist(t *testing.T) {
	cfg := testConfig()
	cfg.Whitelist["9.9.9.9"] = true
	l := NewLimiter(cfg)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("9.9.9.9", "/reports", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/reports", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_SweepRestoresBurstForIdleClients(t *testing.T) {
	l := NewLimiter(testConfig())
	defer l.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/reports", "POST")
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("1.2.3.4", "/reports", "POST")
	require.False(t, allowed, "burst exhausted")

	// Sweeping with a future cutoff treats every bucket as idle; the next
	// request starts from a fresh bucket with its burst restored.
	l.sweep(time.Now().Add(time.Minute))
	allowed, _ = l.Allow("1.2.3.4", "/reports", "POST")
	assert.True(t, allowed)
}

func TestMatchEndpoint_NoMatchFallsThrough(t *testing.T) {
	cfg := testConfig()
	match := MatchEndpoint("/nowhere", "DELETE", cfg.EndpointConfigs)
	assert.Nil(t, match)
}
