package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/config"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/metrics"
	"github.com/BaSui01/httplistener/internal/telemetry"
	"github.com/BaSui01/httplistener/internal/tlsutil"
	"github.com/BaSui01/httplistener/registry"
	"github.com/BaSui01/httplistener/types"
)

// adminOwner 是管理服务器的所有者上下文
const adminOwner = "admin"

// =============================================================================
// 🖥️ Host 结构
// =============================================================================

// Host 托管注册表、配置的服务器与管理端点
type Host struct {
	cfg    *config.Config
	logger *zap.Logger

	providers *telemetry.Providers
	promReg   *prometheus.Registry
	collector *metrics.Collector

	registry *registry.ListenerConnectionManager
	watchers []*config.FileWatcher

	shutdownOnce sync.Once
}

// NewHost 创建新的 Host 实例
func NewHost(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Host {
	return &Host{
		cfg:       cfg,
		logger:    logger,
		providers: providers,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 初始化注册表并创建所有配置的服务器
func (h *Host) Start() error {
	if len(h.cfg.Servers) == 0 && !h.cfg.Admin.Enabled {
		return config.ErrNoServers
	}

	// 1. 指标收集器
	h.promReg = prometheus.NewRegistry()
	if h.cfg.Metrics.Enabled {
		h.collector = metrics.NewCollector(h.cfg.Metrics.Namespace, h.promReg, h.logger)
	}

	// 2. 注册表
	opts := registry.OptionsFromConfig(h.cfg)
	opts.Metrics = h.collector
	opts.Tracer = h.providers.Tracer()
	opts.Logger = h.logger
	h.registry = registry.New(opts)
	if err := h.registry.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}

	// 3. 配置的服务器
	ctx := context.Background()
	for _, sc := range h.cfg.Servers {
		if err := h.startServer(ctx, sc); err != nil {
			return fmt.Errorf("failed to start server %s: %w", sc.Name, err)
		}
	}

	// 4. 管理服务器
	if h.cfg.Admin.Enabled {
		if err := h.startAdminServer(ctx); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	h.logger.Info("All servers started",
		zap.Int("servers", len(h.cfg.Servers)),
		zap.Bool("admin_enabled", h.cfg.Admin.Enabled),
		zap.Bool("metrics_enabled", h.cfg.Metrics.Enabled),
	)
	return nil
}

func (h *Host) startServer(ctx context.Context, sc config.ServerConfig) error {
	id := sc.Identifier()

	var factory httpserver.TLSContextFactory
	if sc.TLS.Enabled {
		factory = fileFactory(sc.TLS)
	}

	srv, err := h.registry.Create(ctx, registry.ServerConfiguration{
		Name:                     sc.Name,
		Host:                     sc.Host,
		Port:                     sc.Port,
		TLSContextFactory:        factory,
		UsePersistentConnections: h.cfg.Listener.UsePersistentConnections,
		ConnectionIdleTimeout:    h.cfg.Listener.ConnectionIdleTimeout,
	}, id.Context)
	if err != nil {
		return err
	}

	for _, route := range sc.Routes {
		srv.AddRequestHandler(route.Methods, route.Path, StaticRoute(route))
	}

	h.logger.Info("Server started",
		zap.String("server", sc.Name),
		zap.String("context", id.Context),
		zap.Stringer("address", srv.ServerAddress()),
		zap.String("protocol", string(srv.Protocol())),
		zap.Int("routes", len(sc.Routes)),
	)

	if sc.TLS.Enabled && sc.TLS.WatchFiles {
		return h.watchTLS(id, sc.TLS)
	}
	return nil
}

// watchTLS 在证书文件变化时重新启用 TLS，使新连接使用新证书
func (h *Host) watchTLS(id types.ServerIdentifier, cfg config.TLSConfig) error {
	paths := []string{cfg.CertFile, cfg.KeyFile}
	if cfg.ClientCAFile != "" {
		paths = append(paths, cfg.ClientCAFile)
	}

	w, err := config.NewFileWatcher(paths, config.WithWatcherLogger(h.logger))
	if err != nil {
		return err
	}
	w.OnChange(func(events []config.FileEvent) {
		h.reloadTLS(id, cfg, events)
	})
	if err := w.Start(context.Background()); err != nil {
		return err
	}
	h.watchers = append(h.watchers, w)
	return nil
}

func (h *Host) reloadTLS(id types.ServerIdentifier, cfg config.TLSConfig, events []config.FileEvent) {
	srv, err := h.registry.Lookup(id)
	if err != nil {
		h.logger.Warn("certificate change for unknown server", zap.Stringer("server", id), zap.Error(err))
		return
	}
	if err := srv.EnableTLS(fileFactory(cfg)); err != nil {
		h.logger.Error("failed to reload certificate",
			zap.Stringer("server", id),
			zap.Int("events", len(events)),
			zap.Error(err))
		return
	}
	h.logger.Info("certificate reloaded", zap.Stringer("server", id), zap.Int("events", len(events)))
}

func fileFactory(cfg config.TLSConfig) tlsutil.FileContextFactory {
	return tlsutil.FileContextFactory{
		CertFile:          cfg.CertFile,
		KeyFile:           cfg.KeyFile,
		ClientCAFile:      cfg.ClientCAFile,
		RequireClientCert: cfg.RequireClientCert,
	}
}

// startAdminServer 通过注册表创建管理服务器，承载健康检查与指标端点
func (h *Host) startAdminServer(ctx context.Context) error {
	srv, err := h.registry.Create(ctx, registry.ServerConfiguration{
		Name:                     "admin",
		Host:                     h.cfg.Admin.Host,
		Port:                     h.cfg.Admin.Port,
		UsePersistentConnections: true,
		ConnectionIdleTimeout:    h.cfg.Listener.ConnectionIdleTimeout,
	}, adminOwner)
	if err != nil {
		return err
	}

	router := NewAdminRouter(h.registry, h.metricsGatherer(), h.logger)
	srv.AddRequestHandler(nil, "/*", httpserver.HTTPHandler(router))

	h.logger.Info("Admin server started", zap.Stringer("address", srv.ServerAddress()))
	return nil
}

func (h *Host) metricsGatherer() prometheus.Gatherer {
	if h.collector == nil {
		return nil
	}
	return h.promReg
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待 SIGINT/SIGTERM 后优雅关闭
func (h *Host) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	signal.Stop(quit)

	h.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	h.Shutdown()
}

// Shutdown 优雅关闭所有服务，可重复调用
func (h *Host) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.logger.Info("Starting graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.Listener.ShutdownTimeout)
		defer cancel()

		var err error
		for _, w := range h.watchers {
			err = multierr.Append(err, w.Stop())
		}
		if h.registry != nil {
			err = multierr.Append(err, h.registry.Dispose(ctx))
		}
		if h.providers != nil {
			err = multierr.Append(err, h.providers.Shutdown(ctx))
		}

		if err != nil {
			h.logger.Error("Shutdown completed with errors", zap.Error(err))
			return
		}
		h.logger.Info("Graceful shutdown completed")
	})
}
