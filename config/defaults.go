// =============================================================================
// 📦 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/httplistener/types"
)

// DefaultServerContext 是未指定 context 的服务器所属的部署单元
const DefaultServerContext = "default"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Listener:  DefaultListenerConfig(),
		Socket:    types.DefaultTCPServerSocketProperties(),
		Admin:     DefaultAdminConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultListenerConfig 返回默认连接管理器配置
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		SelectorThreads:          0,
		WorkerThreads:            256,
		WorkerQueueSize:          4096,
		IdleTimeoutThreads:       1,
		UsePersistentConnections: true,
		ConnectionIdleTimeout:    30 * time.Second,
		IdleSweepInterval:        time.Second,
		ChunkSize:                8 * 1024,
		WriteTimeout:             60 * time.Second,
		MaxHeaderBytes:           1 << 20,
		AcceptRate:               0,
		AcceptBurst:              100,
		ShutdownTimeout:          15 * time.Second,
	}
}

// DefaultAdminConfig 返回默认管理端点配置
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    9091,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "httplistener",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "httplistener",
		SampleRate:   0.1,
	}
}
