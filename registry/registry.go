package registry

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/config"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/metrics"
	"github.com/BaSui01/httplistener/internal/pool"
	"github.com/BaSui01/httplistener/internal/response"
	"github.com/BaSui01/httplistener/internal/server"
	"github.com/BaSui01/httplistener/internal/telemetry"
	"github.com/BaSui01/httplistener/internal/transport"
	"github.com/BaSui01/httplistener/types"
)

// Scheduler names, also used as metrics labels.
const (
	SelectorSchedulerName    = "selector"
	WorkerSchedulerName      = "worker"
	IdleTimeoutSchedulerName = "idle_timeout"
)

// =============================================================================
// ⚙️ 配置
// =============================================================================

// Options configure a ListenerConnectionManager. Zero values take the
// defaults of config.DefaultListenerConfig.
type Options struct {
	// SelectorThreads defaults to max(runtime.NumCPU(), 2).
	SelectorThreads    int
	WorkerThreads      int
	WorkerQueueSize    int
	IdleTimeoutThreads int
	IdleSweepInterval  time.Duration

	ChunkSize      int
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	AcceptRate     float64
	AcceptBurst    int

	// Socket is applied to every bound server.
	Socket types.TCPServerSocketProperties

	Resolver types.Resolver
	Clock    clock.Clock
	Metrics  *metrics.Collector
	Tracer   *telemetry.Tracer
	Logger   *zap.Logger
}

// OptionsFromConfig maps the listener and socket sections of the
// configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	l := cfg.Listener
	return Options{
		SelectorThreads:    l.SelectorThreads,
		WorkerThreads:      l.WorkerThreads,
		WorkerQueueSize:    l.WorkerQueueSize,
		IdleTimeoutThreads: l.IdleTimeoutThreads,
		IdleSweepInterval:  l.IdleSweepInterval,
		ChunkSize:          l.ChunkSize,
		WriteTimeout:       l.WriteTimeout,
		MaxHeaderBytes:     l.MaxHeaderBytes,
		AcceptRate:         l.AcceptRate,
		AcceptBurst:        l.AcceptBurst,
		Socket:             cfg.Socket,
	}
}

func (o Options) withDefaults() Options {
	def := config.DefaultListenerConfig()
	if o.SelectorThreads <= 0 {
		o.SelectorThreads = max(runtime.NumCPU(), 2)
	}
	if o.WorkerThreads <= 0 {
		o.WorkerThreads = def.WorkerThreads
	}
	if o.WorkerQueueSize <= 0 {
		o.WorkerQueueSize = def.WorkerQueueSize
	}
	if o.IdleTimeoutThreads <= 0 {
		o.IdleTimeoutThreads = def.IdleTimeoutThreads
	}
	if o.IdleSweepInterval <= 0 {
		o.IdleSweepInterval = def.IdleSweepInterval
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = def.ChunkSize
	}
	if o.MaxHeaderBytes <= 0 {
		o.MaxHeaderBytes = def.MaxHeaderBytes
	}
	if o.Socket == (types.TCPServerSocketProperties{}) {
		o.Socket = types.DefaultTCPServerSocketProperties()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ServerConfiguration describes a server to create from a host name.
type ServerConfiguration struct {
	Name string
	Host string
	Port int
	// TLSContextFactory makes the server speak TLS when set.
	TLSContextFactory        httpserver.TLSContextFactory
	UsePersistentConnections bool
	ConnectionIdleTimeout    time.Duration
	SchedulerSupplier        httpserver.SchedulerSupplier
}

// =============================================================================
// 🗂️ 服务器注册表
// =============================================================================

// ListenerConnectionManager creates, tracks and tears down listening
// servers. At most one live server exists per address and identifier.
//
// Initialize must be called before any server is created. Dispose tears
// everything down in reverse order: servers, then the idle-timeout, worker
// and selector pools.
type ListenerConnectionManager struct {
	opts   Options
	logger *zap.Logger

	initialized atomic.Bool

	// mu serializes server creation against Dispose.
	mu       sync.Mutex
	disposed bool

	selector *pool.GoroutinePool
	workers  *pool.GoroutinePool
	idle     *pool.GoroutinePool
	reaper   *transport.IdleReaper
	buffers  *pool.BufferPool
	servers  *server.Manager
}

// New creates an uninitialized registry.
func New(opts Options) *ListenerConnectionManager {
	opts = opts.withDefaults()
	return &ListenerConnectionManager{
		opts:   opts,
		logger: opts.Logger.With(zap.String("component", "listener_registry")),
	}
}

// Initialize allocates the pools and the server manager. Repeated calls
// are no-ops.
func (m *ListenerConnectionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return types.NewError(types.ErrDisposed, "listener registry is disposed")
	}
	if !m.initialized.CompareAndSwap(false, true) {
		return nil
	}

	o := m.opts
	m.selector = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		Name:       SelectorSchedulerName,
		MaxWorkers: o.SelectorThreads,
		QueueSize:  o.WorkerQueueSize,
		PanicHandler: func(r any) {
			m.logger.Error("selector task panicked", zap.Any("panic", r))
		},
	}, o.Logger)
	m.workers = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		Name:       WorkerSchedulerName,
		MaxWorkers: o.WorkerThreads,
		QueueSize:  o.WorkerQueueSize,
		PanicHandler: func(r any) {
			m.logger.Error("worker task panicked", zap.Any("panic", r))
		},
	}, o.Logger)
	m.idle = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		Name:       IdleTimeoutSchedulerName,
		MaxWorkers: o.IdleTimeoutThreads,
		QueueSize:  16,
	}, o.Logger)

	m.reaper = transport.NewIdleReaper(m.idle, o.IdleSweepInterval, o.Clock, o.Logger)
	m.reaper.OnReap(func(*transport.Conn) { o.Metrics.ConnectionIdleClosed() })
	m.reaper.Start()

	m.buffers = pool.NewBufferPool(response.BufferSize(o.ChunkSize))

	for _, p := range []*pool.GoroutinePool{m.selector, m.workers, m.idle} {
		o.Metrics.TrackScheduler(p.Name(), func() metrics.SchedulerStats {
			st := p.Stats()
			return metrics.SchedulerStats{Workers: st.Workers, Queued: st.Queued}
		})
	}

	m.servers = server.NewManager(&server.Resources{
		Selector:       m.selector,
		Workers:        m.workers,
		Reaper:         m.reaper,
		Buffers:        m.buffers,
		ChunkSize:      o.ChunkSize,
		WriteTimeout:   o.WriteTimeout,
		MaxHeaderBytes: o.MaxHeaderBytes,
		Socket:         o.Socket,
		Metrics:        o.Metrics,
		Tracer:         o.Tracer,
		Logger:         o.Logger,
	})

	m.logger.Info("listener registry initialized",
		zap.Int("selector_threads", o.SelectorThreads),
		zap.Int("worker_threads", o.WorkerThreads),
		zap.Int("idle_timeout_threads", o.IdleTimeoutThreads))
	return nil
}

// Dispose disposes every server and then stops the pools, idle-timeout
// pool first and selector pool last. ctx bounds every wait; work still
// running when it ends is abandoned and ctx.Err() is part of the result.
// Calls after the first one are no-ops.
func (m *ListenerConnectionManager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}
	m.disposed = true
	if !m.initialized.Load() {
		return nil
	}

	err := m.servers.Dispose(ctx)

	m.reaper.Stop()
	for _, p := range []*pool.GoroutinePool{m.idle, m.workers, m.selector} {
		err = multierr.Append(err, p.StopContext(ctx))
		m.opts.Metrics.UntrackScheduler(p.Name())
	}
	if err != nil {
		m.logger.Warn("listener registry disposed with errors", zap.Error(err))
		return err
	}

	m.logger.Info("listener registry disposed")
	return err
}

// Create resolves cfg.Host and creates a plain or TLS server depending on
// whether a TLS context factory is configured.
func (m *ListenerConnectionManager) Create(ctx context.Context, cfg ServerConfiguration, owner string) (httpserver.HTTPServer, error) {
	addr, err := types.ResolveServerAddress(ctx, m.opts.Resolver, cfg.Host, cfg.Port)
	if err != nil {
		return nil, types.NewServerCreationError(
			fmt.Sprintf("could not resolve %q for server %s", cfg.Host, cfg.Name), err)
	}
	id := types.ServerIdentifier{Context: owner, Name: cfg.Name}

	if cfg.TLSContextFactory != nil {
		return m.CreateTLSServer(addr, cfg.TLSContextFactory, cfg.SchedulerSupplier,
			cfg.UsePersistentConnections, cfg.ConnectionIdleTimeout, id)
	}
	return m.CreateServer(addr, cfg.SchedulerSupplier,
		cfg.UsePersistentConnections, cfg.ConnectionIdleTimeout, id)
}

// CreateServer binds a plain server for addr owned by id.
func (m *ListenerConnectionManager) CreateServer(addr types.ServerAddress, supplier httpserver.SchedulerSupplier,
	usePersistentConnections bool, idleTimeout time.Duration, id types.ServerIdentifier) (httpserver.HTTPServer, error) {
	return m.create(addr, nil, supplier, usePersistentConnections, idleTimeout, id)
}

// CreateTLSServer binds a server for addr with TLS from factory.
func (m *ListenerConnectionManager) CreateTLSServer(addr types.ServerAddress, factory httpserver.TLSContextFactory,
	supplier httpserver.SchedulerSupplier, usePersistentConnections bool, idleTimeout time.Duration,
	id types.ServerIdentifier) (httpserver.HTTPServer, error) {
	if factory == nil {
		return nil, types.NewServerCreationError("tls context factory is required", nil)
	}
	return m.create(addr, factory, supplier, usePersistentConnections, idleTimeout, id)
}

func (m *ListenerConnectionManager) create(addr types.ServerAddress, factory httpserver.TLSContextFactory,
	supplier httpserver.SchedulerSupplier, persistent bool, idleTimeout time.Duration,
	id types.ServerIdentifier) (httpserver.HTTPServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsable(); err != nil {
		return nil, err
	}
	if m.servers.ContainsServerFor(addr, id) {
		return nil, types.NewServerAlreadyExistsError(addr)
	}

	opts := server.ServerOptions{
		Address:                  addr,
		Identifier:               id,
		UsePersistentConnections: persistent,
		ConnectionIdleTimeout:    idleTimeout,
		SchedulerSupplier:        supplier,
		AcceptRate:               m.opts.AcceptRate,
		AcceptBurst:              m.opts.AcceptBurst,
	}

	var (
		srv *server.Server
		err error
	)
	if factory != nil {
		srv, err = m.servers.CreateTLSServerFor(factory, opts)
	} else {
		srv, err = m.servers.CreateServerFor(opts)
	}
	if err != nil {
		return nil, err
	}
	return httpserver.NewDelegate(srv), nil
}

// Lookup returns the server registered for id.
func (m *ListenerConnectionManager) Lookup(id types.ServerIdentifier) (httpserver.HTTPServer, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	srv, ok := m.servers.LookupServer(id)
	if !ok {
		return nil, types.NewServerNotFoundError(id)
	}
	return httpserver.NewDelegate(srv), nil
}

// ContainsServerFor reports whether a live server is registered for the
// address and identifier.
func (m *ListenerConnectionManager) ContainsServerFor(addr types.ServerAddress, id types.ServerIdentifier) bool {
	if !m.initialized.Load() {
		return false
	}
	return m.servers.ContainsServerFor(addr, id)
}

// ServerInfo is a snapshot of one live server.
type ServerInfo struct {
	Identifier  types.ServerIdentifier `json:"identifier"`
	Address     string                 `json:"address"`
	Bound       string                 `json:"bound"`
	Protocol    types.Protocol         `json:"protocol"`
	State       string                 `json:"state"`
	Connections int                    `json:"connections"`
}

// Servers lists the live servers ordered by identifier.
func (m *ListenerConnectionManager) Servers() []ServerInfo {
	if !m.initialized.Load() {
		return nil
	}
	live := m.servers.Servers()
	out := make([]ServerInfo, 0, len(live))
	for _, srv := range live {
		out = append(out, ServerInfo{
			Identifier:  srv.Identifier(),
			Address:     srv.ServerAddress().String(),
			Bound:       srv.BoundAddress().String(),
			Protocol:    srv.Protocol(),
			State:       srv.State().String(),
			Connections: srv.ConnectionCount(),
		})
	}
	return out
}

// BoundAddress returns the address a server actually listens on, which
// differs from the requested one when port 0 was used.
func (m *ListenerConnectionManager) BoundAddress(id types.ServerIdentifier) (types.ServerAddress, error) {
	if err := m.checkInitialized(); err != nil {
		return types.ServerAddress{}, err
	}
	srv, ok := m.servers.LookupServer(id)
	if !ok {
		return types.ServerAddress{}, types.NewServerNotFoundError(id)
	}
	return srv.BoundAddress(), nil
}

func (m *ListenerConnectionManager) checkInitialized() error {
	if !m.initialized.Load() {
		return types.NewError(types.ErrNotInitialized, "listener registry is not initialized")
	}
	return nil
}

// checkUsable must be called with mu held.
func (m *ListenerConnectionManager) checkUsable() error {
	if m.disposed {
		return types.NewError(types.ErrDisposed, "listener registry is disposed")
	}
	return m.checkInitialized()
}
