// 配置加载器与校验测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/httplistener/types"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8*1024, cfg.Listener.ChunkSize)
	assert.Equal(t, 9091, cfg.Admin.Port)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
listener:
  selector_threads: 4
  worker_threads: 32
  use_persistent_connections: false
  connection_idle_timeout: 45s
  chunk_size: 4096

socket:
  send_buffer_size: 65536
  linger: 5
  receive_backlog: 128
  server_timeout: 2s

servers:
  - name: api
    context: orders
    host: 127.0.0.1
    port: 8081
    routes:
      - path: /health
        methods: [GET]
        status: 200
        body: ok
  - name: secure
    port: 8443
    tls:
      enabled: true
      cert_file: /etc/tls/cert.pem
      key_file: /etc/tls/key.pem

log:
  level: debug
  format: console
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证连接管理器配置
	assert.Equal(t, 4, cfg.Listener.SelectorThreads)
	assert.Equal(t, 32, cfg.Listener.WorkerThreads)
	assert.False(t, cfg.Listener.UsePersistentConnections)
	assert.Equal(t, 45*time.Second, cfg.Listener.ConnectionIdleTimeout)
	assert.Equal(t, 4096, cfg.Listener.ChunkSize)
	// 未在 YAML 中出现的字段保留默认值
	assert.Equal(t, 4096, cfg.Listener.WorkerQueueSize)

	// 验证套接字配置
	assert.Equal(t, 65536, cfg.Socket.SendBufferSize)
	require.NotNil(t, cfg.Socket.Linger)
	assert.Equal(t, 5, *cfg.Socket.Linger)
	assert.Equal(t, 128, cfg.Socket.ReceiveBacklog)
	assert.Equal(t, 2*time.Second, cfg.Socket.ServerTimeout)
	assert.True(t, cfg.Socket.SendTCPNoDelay)

	// 验证服务器配置
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, types.ServerIdentifier{Context: "orders", Name: "api"}, cfg.Servers[0].Identifier())
	assert.Equal(t, types.ServerIdentifier{Context: DefaultServerContext, Name: "secure"}, cfg.Servers[1].Identifier())
	require.Len(t, cfg.Servers[0].Routes, 1)
	assert.Equal(t, []string{"GET"}, cfg.Servers[0].Routes[0].Methods)
	assert.True(t, cfg.Servers[1].TLS.Enabled)

	// 验证日志配置
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("HTTPLISTENER_LISTENER_WORKER_THREADS", "64")
	t.Setenv("HTTPLISTENER_LISTENER_CONNECTION_IDLE_TIMEOUT", "90s")
	t.Setenv("HTTPLISTENER_LISTENER_ACCEPT_RATE", "250.5")
	t.Setenv("HTTPLISTENER_SOCKET_KEEP_ALIVE", "true")
	t.Setenv("HTTPLISTENER_SOCKET_LINGER", "0")
	t.Setenv("HTTPLISTENER_ADMIN_PORT", "9191")
	t.Setenv("HTTPLISTENER_LOG_OUTPUT_PATHS", "stdout, /var/log/listener.log")

	// 加载配置
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, 64, cfg.Listener.WorkerThreads)
	assert.Equal(t, 90*time.Second, cfg.Listener.ConnectionIdleTimeout)
	assert.Equal(t, 250.5, cfg.Listener.AcceptRate)
	assert.True(t, cfg.Socket.KeepAlive)
	require.NotNil(t, cfg.Socket.Linger)
	assert.Equal(t, 0, *cfg.Socket.Linger)
	assert.Equal(t, 9191, cfg.Admin.Port)
	assert.Equal(t, []string{"stdout", "/var/log/listener.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
listener:
  chunk_size: 1024
  worker_threads: 8
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 设置环境变量（应该覆盖 YAML）
	t.Setenv("HTTPLISTENER_LISTENER_CHUNK_SIZE", "2048")

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 2048, cfg.Listener.ChunkSize)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, 8, cfg.Listener.WorkerThreads)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LISTENER_CHUNK_SIZE", "512")

	// 使用自定义前缀加载
	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Listener.ChunkSize)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("HTTPLISTENER_SOCKET_LINGER", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPLISTENER_SOCKET_LINGER")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("HTTPLISTENER_LISTENER_CHUNK_SIZE", "0")

	// 加载应该失败
	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// 应该返回默认值
	assert.Equal(t, 8*1024, cfg.Listener.ChunkSize)
}

func TestLoader_InvalidYAML(t *testing.T) {
	// 创建无效的 YAML 文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
listener:
  chunk_size: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	// 加载应该失败
	_, err = NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero chunk size", mutate: func(c *Config) { c.Listener.ChunkSize = 0 }, wantErr: "chunk_size"},
		{name: "negative threads", mutate: func(c *Config) { c.Listener.WorkerThreads = -2 }, wantErr: "thread counts"},
		{name: "negative linger", mutate: func(c *Config) { c.Socket.Linger = &negative }, wantErr: "linger"},
		{name: "server without name", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Port: 80}}
		}, wantErr: "name is required"},
		{name: "server port out of range", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Name: "a", Port: 70000}}
		}, wantErr: "invalid port"},
		{name: "duplicate servers", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Name: "a", Port: 80}, {Name: "a", Context: DefaultServerContext, Port: 81}}
		}, wantErr: "duplicate server"},
		{name: "same name in other context", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Name: "a", Port: 80}, {Name: "a", Context: "other", Port: 80}}
		}},
		{name: "tls without files", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Name: "a", Port: 443, TLS: TLSConfig{Enabled: true}}}
		}, wantErr: "cert_file"},
		{name: "relative route", mutate: func(c *Config) {
			c.Servers = []ServerConfig{{Name: "a", Routes: []RouteConfig{{Path: "health"}}}}
		}, wantErr: "must start with /"},
		{name: "admin port", mutate: func(c *Config) { c.Admin.Port = 0 }, wantErr: "admin port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("admin:\n  port: 9300\n"), 0644))

	cfg := MustLoad(configPath)
	assert.Equal(t, 9300, cfg.Admin.Port)
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("admin: [oops"), 0644))

	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("HTTPLISTENER_METRICS_NAMESPACE", "edge")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "edge", cfg.Metrics.Namespace)
}
