package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/metrics"
	"github.com/BaSui01/httplistener/internal/pool"
	"github.com/BaSui01/httplistener/internal/telemetry"
	"github.com/BaSui01/httplistener/internal/transport"
	"github.com/BaSui01/httplistener/types"
)

// =============================================================================
// 🌐 监听服务器
// =============================================================================

// State is the lifecycle state of a Server.
type State int32

const (
	StateCreated State = iota
	StateStarted
	StateStopping
	StateStopped
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Resources are shared by every server of a Manager.
type Resources struct {
	// Selector runs socket writes and write completions.
	Selector httpserver.Scheduler
	// Workers runs request handlers of servers without their own scheduler.
	Workers httpserver.Scheduler
	// Reaper closes idle connections. Nil disables idle timeouts.
	Reaper *transport.IdleReaper

	Buffers        *pool.BufferPool
	ChunkSize      int
	WriteTimeout   time.Duration
	MaxHeaderBytes int
	Socket         types.TCPServerSocketProperties

	Metrics *metrics.Collector
	Tracer  *telemetry.Tracer
	Logger  *zap.Logger
}

// ServerOptions describe one server.
type ServerOptions struct {
	Address                  types.ServerAddress
	Identifier               types.ServerIdentifier
	UsePersistentConnections bool
	// ConnectionIdleTimeout closes connections idle for longer. Zero disables it.
	ConnectionIdleTimeout time.Duration
	SchedulerSupplier     httpserver.SchedulerSupplier
	// AcceptRate limits accepted connections per second. Zero is unlimited.
	AcceptRate  float64
	AcceptBurst int
}

// Server is a listening HTTP server with its own handler registry.
type Server struct {
	opts   ServerOptions
	res    *Resources
	logger *zap.Logger

	mu       sync.Mutex
	state    atomic.Int32
	listener net.Listener
	bound    types.ServerAddress
	// acceptCtx is cancelled when the listener is closed.
	acceptCancel context.CancelFunc
	acceptWG     sync.WaitGroup
	// protocol the server was started with, for metrics labels
	startedProto string

	tlsConfig atomic.Pointer[tls.Config]
	handlers  *handlerRegistry
	ws        *wsRegistry
	limiter   *rate.Limiter

	connMu sync.Mutex
	conns  map[*transport.Conn]struct{}
	connWG sync.WaitGroup

	// ctx lives until Dispose and is the parent of every request context.
	ctx    context.Context
	cancel context.CancelFunc

	onDispose func()
}

func newServer(opts ServerOptions, res *Resources, onDispose func()) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:      opts,
		res:       res,
		bound:     opts.Address,
		handlers:  newHandlerRegistry(),
		ws:        newWSRegistry(),
		conns:     make(map[*transport.Conn]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		onDispose: onDispose,
		logger: res.Logger.With(
			zap.String("server", opts.Identifier.String()),
			zap.String("address", opts.Address.String()),
		),
	}
	if opts.AcceptRate > 0 {
		burst := opts.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	s.state.Store(int32(StateCreated))
	res.Metrics.RecordServerEvent("created")
	return s
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Identifier returns the owner of the server.
func (s *Server) Identifier() types.ServerIdentifier {
	return s.opts.Identifier
}

// ServerAddress returns the address the server was created for.
func (s *Server) ServerAddress() types.ServerAddress {
	return s.opts.Address
}

// BoundAddress returns the address actually bound, which differs from
// ServerAddress when port 0 was requested.
func (s *Server) BoundAddress() types.ServerAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Protocol reports HTTPS while TLS is enabled.
func (s *Server) Protocol() types.Protocol {
	if s.tlsConfig.Load() != nil {
		return types.ProtocolHTTPS
	}
	return types.ProtocolHTTP
}

func (s *Server) IsStopping() bool {
	return s.State() == StateStopping
}

func (s *Server) IsStopped() bool {
	st := s.State()
	return st == StateStopped || st == StateDisposed
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() (httpserver.HTTPServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateDisposed:
		return nil, types.NewError(types.ErrDisposed, fmt.Sprintf("server %s is disposed", s.opts.Identifier))
	case StateStarted:
		return s, nil
	}

	ln, err := transport.Listen(s.ctx, s.opts.Address, s.res.Socket)
	if err != nil {
		return nil, types.NewServerCreationError(fmt.Sprintf("could not bind %s", s.opts.Address), err)
	}
	s.listener = ln
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		if ap := tcp.AddrPort(); ap.IsValid() {
			s.bound = types.NewServerAddress(ap.Addr(), int(ap.Port()))
		}
	}

	acceptCtx, cancel := context.WithCancel(s.ctx)
	s.acceptCancel = cancel
	s.state.Store(int32(StateStarted))

	s.acceptWG.Add(1)
	go s.acceptLoop(acceptCtx, ln)

	s.startedProto = string(s.Protocol())
	s.res.Metrics.ServerStarted(s.startedProto)
	s.logger.Info("server started", zap.String("bound", s.bound.String()), zap.String("protocol", string(s.Protocol())))
	return s, nil
}

// Stop closes the listener. Open connections keep being served.
func (s *Server) Stop() httpserver.HTTPServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return s
}

func (s *Server) stopLocked() {
	if s.State() != StateStarted {
		return
	}
	s.state.Store(int32(StateStopping))
	s.acceptCancel()
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("closing listener failed", zap.Error(err))
	}
	s.acceptWG.Wait()
	s.listener = nil
	s.state.Store(int32(StateStopped))

	s.res.Metrics.ServerStopped(s.startedProto)
	s.logger.Info("server stopped")
}

// Dispose stops the server, closes every connection and waits for the
// connection goroutines to exit.
func (s *Server) Dispose() {
	s.mu.Lock()
	if s.State() == StateDisposed {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.state.Store(int32(StateDisposed))
	s.mu.Unlock()

	s.cancel()
	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()
	s.connWG.Wait()

	s.res.Metrics.RecordServerEvent("disposed")
	s.logger.Info("server disposed")

	if s.onDispose != nil {
		s.onDispose()
	}
}

// AddRequestHandler registers h for path and methods.
func (s *Server) AddRequestHandler(methods []string, path string, h httpserver.RequestHandler) httpserver.RequestHandlerManager {
	e := s.handlers.add(methods, path, h)
	s.logger.Debug("request handler added", zap.String("path", path), zap.Strings("methods", methods))
	return &handlerManager{registry: s.handlers, entry: e}
}

// AddWebSocketHandler registers h for upgrades on h.Path().
func (s *Server) AddWebSocketHandler(h httpserver.WebSocketHandler) httpserver.WebSocketHandlerManager {
	e := s.ws.add(h)
	s.logger.Debug("websocket handler added", zap.String("path", e.path))
	return &wsManager{registry: s.ws, entry: e}
}

// EnableTLS makes connections accepted from now on speak TLS.
func (s *Server) EnableTLS(factory httpserver.TLSContextFactory) error {
	if factory == nil {
		return types.NewError(types.ErrInvalidRequest, "tls context factory is nil")
	}
	cfg, err := factory.ServerTLSConfig()
	if err != nil {
		return fmt.Errorf("load tls config for %s: %w", s.opts.Identifier, err)
	}
	s.tlsConfig.Store(cfg)
	s.logger.Info("tls enabled")
	return nil
}

// DisableTLS makes connections accepted from now on plain HTTP.
func (s *Server) DisableTLS() {
	s.tlsConfig.Store(nil)
	s.logger.Info("tls disabled")
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// =============================================================================
// 📥 接收循环
// =============================================================================

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.acceptWG.Done()

	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if transport.IsTimeout(err) {
				continue
			}
			// 与 net/http 相同的退避策略
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		if err := transport.ApplyConnOptions(nc, s.res.Socket); err != nil {
			s.logger.Debug("applying socket options failed", zap.Error(err))
		}
		s.connWG.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) track(c *transport.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.State() == StateDisposed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *transport.Conn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

func (s *Server) scheduler() httpserver.Scheduler {
	if s.opts.SchedulerSupplier != nil {
		if sch := s.opts.SchedulerSupplier(); sch != nil {
			return sch
		}
	}
	return s.res.Workers
}

var _ httpserver.HTTPServer = (*Server)(nil)
