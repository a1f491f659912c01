package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ListenerConfig{}, cfg.Listener)
	assert.NotEqual(t, AdminConfig{}, cfg.Admin)
	assert.NotEqual(t, MetricsConfig{}, cfg.Metrics)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NotEmpty(t, cfg.Log.OutputPaths)
	assert.Empty(t, cfg.Servers)
	assert.NoError(t, cfg.Validate())
}

// --- Individual Default*Config functions ---

func TestDefaultListenerConfig(t *testing.T) {
	cfg := DefaultListenerConfig()
	assert.Equal(t, 0, cfg.SelectorThreads)
	assert.True(t, cfg.UsePersistentConnections)
	assert.Equal(t, 8*1024, cfg.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.ConnectionIdleTimeout)
	assert.Equal(t, time.Second, cfg.IdleSweepInterval)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.AcceptRate)
}

func TestDefaultSocketConfig(t *testing.T) {
	cfg := DefaultConfig().Socket
	assert.True(t, cfg.SendTCPNoDelay)
	assert.True(t, cfg.ReuseAddress)
	assert.False(t, cfg.KeepAlive)
	assert.Equal(t, 50, cfg.ReceiveBacklog)
	assert.Nil(t, cfg.Linger)
}

func TestDefaultAdminConfig(t *testing.T) {
	cfg := DefaultAdminConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9091, cfg.Port)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "httplistener", cfg.ServiceName)
	assert.Equal(t, 0.1, cfg.SampleRate)
}
