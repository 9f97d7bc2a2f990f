// ABOUTME: Tests for the backend pool: partial startup, failed backends, routing by name, health, and shutdown.
// ABOUTME: Uses the helper-mode fake servers from helper_test.go.

package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/mcp"
)

func TestPool_PartialStartup(t *testing.T) {
	pool := NewPool([]config.BackendConfig{
		helperConfig(t, "alpha", "echo"),
		helperConfig(t, "broken", "exit"),
		helperConfig(t, "beta", "echo"),
	}, nil, fastOptions())
	t.Cleanup(func() { pool.CloseAll(context.Background()) })

	failures := pool.InitializeAll(context.Background())
	require.Len(t, failures, 1)
	assert.Contains(t, failures, "broken")

	assert.Equal(t, []string{"alpha", "beta"}, pool.Names())
	assert.True(t, pool.Has("alpha"))
	assert.False(t, pool.Has("broken"))
	assert.Equal(t, "helper echo", pool.Description("beta"))
	assert.Equal(t, []string{"alpha", "broken", "beta"}, pool.Configured())

	t.Run("forwarding to a failed backend is unavailable, not unknown", func(t *testing.T) {
		_, err := pool.ForwardRequest(context.Background(), "broken", request(t, "ping", nil))
		require.ErrorIs(t, err, ErrUnavailable)
		assert.NotErrorIs(t, err, ErrUnknownBackend)
		assert.ErrorContains(t, err, "backend broken is not running")
	})
}

func TestPool_Forwarding(t *testing.T) {
	pool := NewPool([]config.BackendConfig{helperConfig(t, "alpha", "echo")}, nil, fastOptions())
	require.Nil(t, pool.InitializeAll(context.Background()))
	t.Cleanup(func() { pool.CloseAll(context.Background()) })

	t.Run("known backend", func(t *testing.T) {
		resp, err := pool.ForwardRequest(context.Background(), "alpha", request(t, "ping", nil))
		require.NoError(t, err)
		assert.Equal(t, "ping", decodeEcho(t, resp).Method)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := pool.ForwardRequest(context.Background(), "ghost", request(t, "ping", nil))
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("notification to unknown backend is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			pool.ForwardNotification("ghost", request(t, mcp.MethodNotificationInitialized, nil))
		})
	})
}

func TestPool_Health(t *testing.T) {
	pool := NewPool([]config.BackendConfig{
		helperConfig(t, "alpha", "echo"),
		helperConfig(t, "broken", "exit"),
	}, nil, fastOptions())
	pool.InitializeAll(context.Background())
	t.Cleanup(func() { pool.CloseAll(context.Background()) })

	healthy := pool.CheckHealth(context.Background(), "alpha")
	assert.Equal(t, HealthHealthy, healthy.Status)
	require.NotNil(t, healthy.ServerInfo)
	assert.Equal(t, "helper", healthy.ServerInfo.Name)

	missing := pool.CheckHealth(context.Background(), "ghost")
	assert.Equal(t, HealthUnknown, missing.Status)
	assert.Equal(t, "backend not found", missing.Error)

	all := pool.CheckAll(context.Background())
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, HealthHealthy, all[0].Status)
	assert.Equal(t, HealthUnknown, all[1].Status)
	assert.Equal(t, "backend not running", all[1].Error)
}

func TestPool_CloseAll(t *testing.T) {
	pool := NewPool([]config.BackendConfig{
		helperConfig(t, "alpha", "echo"),
		helperConfig(t, "stubborn", "stubborn"),
	}, nil, fastOptions())
	require.Nil(t, pool.InitializeAll(context.Background()))

	pool.CloseAll(context.Background())

	for _, name := range []string{"alpha", "stubborn"} {
		proc, ok := pool.Process(name)
		require.True(t, ok)
		assert.Equal(t, StateStopped, proc.State(), name)
		assert.True(t, proc.Exited(), name)
	}
}
