package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/types"
)

// =============================================================================
// 🌐 服务器管理器
// =============================================================================

// Manager owns every server bound through it, keyed by address and
// identifier.
type Manager struct {
	res    *Resources
	logger *zap.Logger

	mu       sync.Mutex
	servers  map[types.RegistryKey]*Server
	disposed bool
}

// NewManager creates a manager whose servers share res.
func NewManager(res *Resources) *Manager {
	if res.Logger == nil {
		res.Logger = zap.NewNop()
	}
	return &Manager{
		res:     res,
		logger:  res.Logger.With(zap.String("component", "server_manager")),
		servers: make(map[types.RegistryKey]*Server),
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// CreateServerFor binds and starts a plain HTTP server.
func (m *Manager) CreateServerFor(opts ServerOptions) (*Server, error) {
	return m.create(opts, nil)
}

// CreateTLSServerFor binds and starts a server with TLS enabled from factory.
func (m *Manager) CreateTLSServerFor(factory httpserver.TLSContextFactory, opts ServerOptions) (*Server, error) {
	if factory == nil {
		return nil, types.NewServerCreationError("tls context factory is required", nil)
	}
	return m.create(opts, factory)
}

func (m *Manager) create(opts ServerOptions, factory httpserver.TLSContextFactory) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil, types.NewError(types.ErrDisposed, "server manager is disposed")
	}
	key := types.RegistryKey{Address: opts.Address, Identifier: opts.Identifier}
	if _, exists := m.servers[key]; exists {
		return nil, types.NewServerAlreadyExistsError(opts.Address)
	}
	for other := range m.servers {
		if other.Identifier != key.Identifier && other.Address.Overlaps(key.Address) {
			m.logger.Warn("address overlaps an existing server",
				zap.String("address", key.Address.String()),
				zap.String("existing", other.Identifier.String()))
		}
	}

	srv := newServer(opts, m.res, nil)
	if factory != nil {
		if err := srv.EnableTLS(factory); err != nil {
			srv.Dispose()
			return nil, types.NewServerCreationError(fmt.Sprintf("tls setup for %s failed", opts.Identifier), err)
		}
	}
	if _, err := srv.Start(); err != nil {
		srv.Dispose()
		return nil, err
	}
	srv.onDispose = func() { m.remove(key, srv) }
	m.servers[key] = srv

	m.logger.Info("server created",
		zap.String("server", opts.Identifier.String()),
		zap.String("address", opts.Address.String()),
		zap.String("protocol", string(srv.Protocol())))
	return srv, nil
}

func (m *Manager) remove(key types.RegistryKey, srv *Server) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.servers[key] == srv {
		delete(m.servers, key)
	}
}

// ContainsServerFor reports whether a live server is registered for the pair.
func (m *Manager) ContainsServerFor(addr types.ServerAddress, id types.ServerIdentifier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.servers[types.RegistryKey{Address: addr, Identifier: id}]
	return ok
}

// LookupServer finds a server by identifier alone.
func (m *Manager) LookupServer(id types.ServerIdentifier) (*Server, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, srv := range m.servers {
		if key.Identifier == id {
			return srv, true
		}
	}
	return nil, false
}

// Servers returns the live servers ordered by identifier.
func (m *Manager) Servers() []*Server {
	m.mu.Lock()
	out := make([]*Server, 0, len(m.servers))
	for _, srv := range m.servers {
		out = append(out, srv)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier().String() < out[j].Identifier().String()
	})
	return out
}

// Dispose disposes every server in parallel. Servers still busy when ctx
// ends are unregistered, reported in the returned error and finish in the
// background, so no lookup returns them once Dispose has returned.
func (m *Manager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	keys := make([]types.RegistryKey, 0, len(m.servers))
	servers := make([]*Server, 0, len(m.servers))
	for key, srv := range m.servers {
		keys = append(keys, key)
		servers = append(servers, srv)
	}
	m.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  error
	)
	g := new(errgroup.Group)
	for i, srv := range servers {
		key := keys[i]
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				srv.Dispose()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				m.remove(key, srv)
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("dispose %s: %w", srv.Identifier(), ctx.Err()))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("server manager disposed", zap.Int("servers", len(servers)))
	return errs
}
