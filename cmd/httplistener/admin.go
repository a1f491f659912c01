package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/registry"
)

// =============================================================================
// 🏥 管理端点
// =============================================================================

// ServerLister 列出注册表中的服务器
type ServerLister interface {
	Servers() []registry.ServerInfo
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                `json:"status"` // "healthy", "unhealthy"
	Timestamp time.Time             `json:"timestamp"`
	Servers   []registry.ServerInfo `json:"servers,omitempty"`
}

// NewAdminRouter 构建管理路由。gatherer 为 nil 时不暴露 /metrics。
func NewAdminRouter(servers ServerLister, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(logger), RequestID(), ServedBy(), SecurityHeaders(), RequestLogger(logger))

	r.Get("/health", handleHealth)
	r.Get("/healthz", handleHealth)
	r.Get("/ready", handleReady(servers))
	r.Get("/readyz", handleReady(servers))
	r.Get("/version", handleVersion)
	r.Get("/servers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, servers.Servers())
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// handleHealth 活跃度探针：进程能响应即为健康
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleReady 就绪探针：所有服务器都已启动才就绪
func handleReady(servers ServerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		list := servers.Servers()
		status := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Servers:   list,
		}

		code := http.StatusOK
		for _, s := range list {
			if s.State != "started" {
				status.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, code, status)
	}
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
