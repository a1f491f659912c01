// =============================================================================
// 📦 监听服务配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("HTTPLISTENER").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/httplistener/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是监听服务的完整配置结构
type Config struct {
	// Listener 连接管理器（调度器与连接行为）配置
	Listener ListenerConfig `yaml:"listener" env:"LISTENER"`

	// Socket 监听套接字参数，所有服务器共用
	Socket types.TCPServerSocketProperties `yaml:"socket" env:"SOCKET"`

	// Servers 启动时创建的服务器，仅支持 YAML 配置
	Servers []ServerConfig `yaml:"servers" env:"-"`

	// Admin 管理端点（健康检查、指标、服务器列表）
	Admin AdminConfig `yaml:"admin" env:"ADMIN"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ListenerConfig 连接管理器配置
type ListenerConfig struct {
	// selector 调度器 worker 数，0 表示 max(NumCPU, 2)
	SelectorThreads int `yaml:"selector_threads" env:"SELECTOR_THREADS"`
	// 请求处理 worker 上限
	WorkerThreads int `yaml:"worker_threads" env:"WORKER_THREADS"`
	// 请求处理队列长度
	WorkerQueueSize int `yaml:"worker_queue_size" env:"WORKER_QUEUE_SIZE"`
	// 空闲超时调度器 worker 数
	IdleTimeoutThreads int `yaml:"idle_timeout_threads" env:"IDLE_TIMEOUT_THREADS"`
	// 是否启用持久连接
	UsePersistentConnections bool `yaml:"use_persistent_connections" env:"USE_PERSISTENT_CONNECTIONS"`
	// 连接空闲超时，0 表示不超时
	ConnectionIdleTimeout time.Duration `yaml:"connection_idle_timeout" env:"CONNECTION_IDLE_TIMEOUT"`
	// 空闲连接扫描间隔
	IdleSweepInterval time.Duration `yaml:"idle_sweep_interval" env:"IDLE_SWEEP_INTERVAL"`
	// 流式响应分块大小（字节）
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 单次写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 请求头最大字节数
	MaxHeaderBytes int `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	// 每秒接受的连接数上限，0 表示不限制
	AcceptRate float64 `yaml:"accept_rate" env:"ACCEPT_RATE"`
	// 接受速率突发值
	AcceptBurst int `yaml:"accept_burst" env:"ACCEPT_BURST"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// ServerConfig 启动时创建的一个监听服务器
type ServerConfig struct {
	// 服务器名称，在同一 context 内唯一
	Name string `yaml:"name"`
	// 所属 context（部署单元）
	Context string `yaml:"context"`
	// 主机名或 IP，空表示所有接口
	Host string `yaml:"host"`
	// 端口
	Port int `yaml:"port"`
	// TLS 配置
	TLS TLSConfig `yaml:"tls"`
	// 静态路由
	Routes []RouteConfig `yaml:"routes"`
}

// TLSConfig 服务器 TLS 配置
type TLSConfig struct {
	Enabled           bool   `yaml:"enabled" env:"ENABLED"`
	CertFile          string `yaml:"cert_file" env:"CERT_FILE"`
	KeyFile           string `yaml:"key_file" env:"KEY_FILE"`
	ClientCAFile      string `yaml:"client_ca_file" env:"CLIENT_CA_FILE"`
	RequireClientCert bool   `yaml:"require_client_cert" env:"REQUIRE_CLIENT_CERT"`
	// 证书文件变更时自动重新加载
	WatchFiles bool `yaml:"watch_files" env:"WATCH_FILES"`
}

// RouteConfig 返回固定响应的路由
type RouteConfig struct {
	Path        string            `yaml:"path"`
	Methods     []string          `yaml:"methods"`
	Status      int               `yaml:"status"`
	Body        string            `yaml:"body"`
	ContentType string            `yaml:"content_type"`
	Headers     map[string]string `yaml:"headers"`
}

// AdminConfig 管理端点配置
type AdminConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "HTTPLISTENER",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Pointer:
		// 可选值（如 SO_LINGER）：分配后按元素类型解析
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证连接管理器配置
	if c.Listener.ChunkSize <= 0 {
		errs = append(errs, "listener.chunk_size must be positive")
	}
	if c.Listener.SelectorThreads < 0 || c.Listener.WorkerThreads < 0 || c.Listener.IdleTimeoutThreads < 0 {
		errs = append(errs, "listener thread counts must not be negative")
	}
	if c.Listener.ConnectionIdleTimeout < 0 {
		errs = append(errs, "listener.connection_idle_timeout must not be negative")
	}
	if c.Listener.AcceptRate < 0 {
		errs = append(errs, "listener.accept_rate must not be negative")
	}

	// 验证套接字配置
	if c.Socket.SendBufferSize < 0 || c.Socket.ReceiveBufferSize < 0 {
		errs = append(errs, "socket buffer sizes must not be negative")
	}
	if c.Socket.Linger != nil && *c.Socket.Linger < 0 {
		errs = append(errs, "socket.linger must not be negative")
	}

	// 验证服务器配置
	seen := make(map[types.ServerIdentifier]bool)
	for i, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("servers[%d]: name is required", i))
		}
		if s.Port < 0 || s.Port > 65535 {
			errs = append(errs, fmt.Sprintf("servers[%d]: invalid port %d", i, s.Port))
		}
		id := s.Identifier()
		if seen[id] {
			errs = append(errs, fmt.Sprintf("servers[%d]: duplicate server %s", i, id))
		}
		seen[id] = true
		if s.TLS.Enabled && (s.TLS.CertFile == "" || s.TLS.KeyFile == "") {
			errs = append(errs, fmt.Sprintf("servers[%d]: tls requires cert_file and key_file", i))
		}
		for j, r := range s.Routes {
			if !strings.HasPrefix(r.Path, "/") {
				errs = append(errs, fmt.Sprintf("servers[%d].routes[%d]: path must start with /", i, j))
			}
		}
	}

	// 验证管理端点配置
	if c.Admin.Enabled && (c.Admin.Port <= 0 || c.Admin.Port > 65535) {
		errs = append(errs, "invalid admin port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Identifier 返回服务器在注册表中的标识
func (s ServerConfig) Identifier() types.ServerIdentifier {
	ctx := s.Context
	if ctx == "" {
		ctx = DefaultServerContext
	}
	return types.ServerIdentifier{Context: ctx, Name: s.Name}
}

// ErrNoServers 表示配置中没有任何服务器，且管理端点未启用
var ErrNoServers = errors.New("no servers configured")
