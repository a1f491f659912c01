package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/config"
)

// =============================================================================
// 📡 Provider 初始化
// =============================================================================

// 资源属性键，描述一个监听进程的调度器与服务器布局
const (
	AttrSelectorThreads    = attribute.Key("httplistener.selector_threads")
	AttrWorkerThreads      = attribute.Key("httplistener.worker_threads")
	AttrIdleTimeoutThreads = attribute.Key("httplistener.idle_timeout_threads")
	AttrChunkSize          = attribute.Key("httplistener.chunk_size")
	AttrPersistent         = attribute.Key("httplistener.persistent_connections")
	AttrServers            = attribute.Key("httplistener.servers")
)

// Providers 持有 SDK provider 以及基于它的请求追踪器。
// 遥测关闭时 tp/mp 为 nil，Tracer 退回全局（noop）provider。
type Providers struct {
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	res    *resource.Resource
	tracer *Tracer
}

// Init 按 cfg.Telemetry 初始化 OTLP 导出；资源中带上监听器实例信息
// （调度器规模、分块大小、配置的服务器），便于按实例区分响应 span。
func Init(cfg *config.Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tc := cfg.Telemetry
	if !tc.Enabled {
		logger.Info("telemetry disabled, using noop providers")
		return &Providers{tracer: NewTracer(nil)}, nil
	}

	ctx := context.Background()
	res, err := listenerResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(tc.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(tc.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("create metric exporter: %w", err),
			traceExporter.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(requestSampler(tc.SampleRate)),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(compositePropagator())

	logger.Info("telemetry initialized",
		zap.String("endpoint", tc.OTLPEndpoint),
		zap.String("service_name", tc.ServiceName),
		zap.Float64("sample_rate", tc.SampleRate),
		zap.Int("servers", len(cfg.Servers)),
	)

	return &Providers{tp: tp, mp: mp, res: res, tracer: NewTracer(tp)}, nil
}

// Tracer 返回用于请求/响应 span 的追踪器；nil Providers 也可调用。
func (p *Providers) Tracer() *Tracer {
	if p == nil || p.tracer == nil {
		return NewTracer(nil)
	}
	return p.tracer
}

// Resource 返回导出使用的资源，遥测关闭时为 nil
func (p *Providers) Resource() *resource.Resource {
	if p == nil {
		return nil
	}
	return p.res
}

// Shutdown 刷新未导出的 span 与指标并关闭导出器
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	if p.tp != nil {
		if e := p.tp.Shutdown(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown tracer provider: %w", e))
		}
	}
	if p.mp != nil {
		if e := p.mp.Shutdown(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown meter provider: %w", e))
		}
	}
	return err
}

// listenerResource 描述当前监听进程
func listenerResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	l := cfg.Listener
	servers := make([]string, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		servers = append(servers, sc.Identifier().String())
	}

	return resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.Telemetry.ServiceName),
			semconv.ServiceVersionKey.String(buildVersion()),
			semconv.ServiceInstanceID(uuid.NewString()),
			AttrSelectorThreads.Int(selectorThreads(l.SelectorThreads)),
			AttrWorkerThreads.Int(l.WorkerThreads),
			AttrIdleTimeoutThreads.Int(l.IdleTimeoutThreads),
			AttrChunkSize.Int(l.ChunkSize),
			AttrPersistent.Bool(l.UsePersistentConnections),
			AttrServers.StringSlice(servers),
		),
	)
}

// requestSampler 跟随上游请求的采样决定，只对根 span 按比例采样
func requestSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// selectorThreads 与注册表使用相同的默认规模
func selectorThreads(n int) int {
	if n > 0 {
		return n
	}
	return max(runtime.NumCPU(), 2)
}

// buildVersion 从构建信息读取模块版本，取不到时为 "dev"
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
