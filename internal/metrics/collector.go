// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。nil *Collector 的所有记录方法都是空操作。
type Collector struct {
	// 服务器指标
	serversActive   *prometheus.GaugeVec
	serverLifecycle *prometheus.CounterVec

	// 连接指标
	connectionsActive     prometheus.Gauge
	connectionsAccepted   prometheus.Counter
	connectionsIdleClosed prometheus.Counter

	// 请求与响应指标
	requestsTotal    *prometheus.CounterVec
	responsesTotal   *prometheus.CounterVec
	responseDuration *prometheus.HistogramVec
	responseBytes    prometheus.Histogram
	chunksSent       prometheus.Counter
	chunkSize        prometheus.Histogram

	// 调度器指标
	schedulerRejections *prometheus.CounterVec
	schedulers          *schedulerCollector

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到 reg；reg 为 nil 时使用默认注册表
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 服务器指标
	c.serversActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "servers_active",
			Help:      "Number of started servers",
		},
		[]string{"protocol"},
	)

	c.serverLifecycle = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_lifecycle_events_total",
			Help:      "Server lifecycle transitions",
		},
		[]string{"event"}, // created, started, stopped, disposed
	)

	// 连接指标
	c.connectionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Number of open client connections",
	})

	c.connectionsAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_accepted_total",
		Help:      "Total number of accepted connections",
	})

	c.connectionsIdleClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_idle_closed_total",
		Help:      "Connections closed by the idle timeout",
	})

	// 请求与响应指标
	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of parsed requests",
		},
		[]string{"method", "status"},
	)

	c.responsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of responses by delivery outcome",
		},
		[]string{"status", "outcome"},
	)

	c.responseDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_duration_seconds",
			Help:      "Time from the first header write to the terminal state",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	c.responseBytes = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "response_body_size_bytes",
		Help:      "Response body size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
	})

	c.chunksSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_chunks_sent_total",
		Help:      "Total number of streamed body chunks",
	})

	c.chunkSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "response_chunk_size_bytes",
		Help:      "Streamed body chunk size in bytes",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 6),
	})

	// 调度器指标
	c.schedulerRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_rejections_total",
			Help:      "Tasks rejected by a scheduler",
		},
		[]string{"scheduler"},
	)

	c.schedulers = newSchedulerCollector(namespace)
	reg.MustRegister(c.schedulers)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🌐 服务器与连接
// =============================================================================

// RecordServerEvent 记录服务器生命周期事件
func (c *Collector) RecordServerEvent(event string) {
	if c == nil {
		return
	}
	c.serverLifecycle.WithLabelValues(event).Inc()
}

// ServerStarted 记录服务器启动
func (c *Collector) ServerStarted(protocol string) {
	if c == nil {
		return
	}
	c.serversActive.WithLabelValues(protocol).Inc()
	c.serverLifecycle.WithLabelValues("started").Inc()
}

// ServerStopped 记录服务器停止
func (c *Collector) ServerStopped(protocol string) {
	if c == nil {
		return
	}
	c.serversActive.WithLabelValues(protocol).Dec()
	c.serverLifecycle.WithLabelValues("stopped").Inc()
}

// ConnectionOpened 记录新连接
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsAccepted.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed 记录连接关闭
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Dec()
}

// ConnectionIdleClosed 记录空闲超时关闭的连接
func (c *Collector) ConnectionIdleClosed() {
	if c == nil {
		return
	}
	c.connectionsIdleClosed.Inc()
}

// =============================================================================
// 🎯 请求与响应
// =============================================================================

// RecordRequest 记录已解析请求及其分派结果
func (c *Collector) RecordRequest(method string, status int) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, statusCode(status)).Inc()
}

// ChunkSent 记录一个已发送的响应体分块
func (c *Collector) ChunkSent(bytes int) {
	if c == nil {
		return
	}
	c.chunksSent.Inc()
	c.chunkSize.Observe(float64(bytes))
}

// ResponseFinished 记录响应的最终结果
func (c *Collector) ResponseFinished(status int, outcome string, bodyBytes int64, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.responsesTotal.WithLabelValues(statusCode(status), outcome).Inc()
	c.responseDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	c.responseBytes.Observe(float64(bodyBytes))
}

// =============================================================================
// ⚙️ 调度器
// =============================================================================

// SchedulerStats 调度器快照
type SchedulerStats struct {
	Workers int
	Queued  int
}

// TrackScheduler 在采集时读取 stats 导出调度器的 worker 与队列深度
func (c *Collector) TrackScheduler(name string, stats func() SchedulerStats) {
	if c == nil {
		return
	}
	c.schedulers.track(name, stats)
}

// UntrackScheduler 停止导出调度器指标
func (c *Collector) UntrackScheduler(name string) {
	if c == nil {
		return
	}
	c.schedulers.untrack(name)
}

// RecordSchedulerRejection 记录被调度器拒绝的任务
func (c *Collector) RecordSchedulerRejection(name string) {
	if c == nil {
		return
	}
	c.schedulerRejections.WithLabelValues(name).Inc()
}

// schedulerCollector 是按需读取调度器状态的 prometheus.Collector
type schedulerCollector struct {
	workers *prometheus.Desc
	queued  *prometheus.Desc

	mu    sync.RWMutex
	stats map[string]func() SchedulerStats
}

func newSchedulerCollector(namespace string) *schedulerCollector {
	return &schedulerCollector{
		workers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "workers"),
			"Running workers per scheduler",
			[]string{"scheduler"}, nil,
		),
		queued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scheduler", "queue_depth"),
			"Queued tasks per scheduler",
			[]string{"scheduler"}, nil,
		),
		stats: make(map[string]func() SchedulerStats),
	}
}

func (s *schedulerCollector) track(name string, fn func() SchedulerStats) {
	s.mu.Lock()
	s.stats[name] = fn
	s.mu.Unlock()
}

func (s *schedulerCollector) untrack(name string) {
	s.mu.Lock()
	delete(s.stats, name)
	s.mu.Unlock()
}

func (s *schedulerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.workers
	ch <- s.queued
}

func (s *schedulerCollector) Collect(ch chan<- prometheus.Metric) {
	s.mu.RLock()
	names := make([]string, 0, len(s.stats))
	fns := make(map[string]func() SchedulerStats, len(s.stats))
	for name, fn := range s.stats {
		names = append(names, name)
		fns[name] = fn
	}
	s.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		st := fns[name]()
		ch <- prometheus.MustNewConstMetric(s.workers, prometheus.GaugeValue, float64(st.Workers), name)
		ch <- prometheus.MustNewConstMetric(s.queued, prometheus.GaugeValue, float64(st.Queued), name)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
