package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/ctxkeys"
)

// 管理端点的 HTTP 中间件。请求经由注册表中的服务器到达，
// context 中带有服务器标识与连接 ID，日志与响应头都会用到它们。

// HeaderServedBy 响应头，值为处理请求的服务器标识
const HeaderServedBy = "X-Served-By"

// RequestIDFromContext returns the request ID set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctxkeys.RequestID(ctx)
	return id
}

// Middleware 包装一个 http.Handler
type Middleware func(http.Handler) http.Handler

// Chain 按参数顺序包装 h，第一个中间件最先执行
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// requestFields 从 context 中取出监听器相关的日志字段
func requestFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if id, ok := httpserver.ServerFrom(ctx); ok {
		fields = append(fields, zap.String("server", id.String()))
	}
	if conn := httpserver.ConnectionIDFrom(ctx); conn != "" {
		fields = append(fields, zap.String("connection_id", conn))
	}
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	return fields
}

// Recovery 把 handler 的 panic 转换为 500，并记录所在服务器与连接
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					fields := append([]zap.Field{zap.Any("error", err), zap.String("path", r.URL.Path)}, requestFields(r.Context())...)
					logger.Error("panic recovered", fields...)
					writeJSON(w, http.StatusInternalServerError, map[string]string{
						"error":      "internal server error",
						"request_id": RequestIDFromContext(r.Context()),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger 以 Debug 级别记录每个管理请求
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			fields := append([]zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}, requestFields(r.Context())...)
			logger.Debug("admin request", fields...)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID 保留客户端的 X-Request-ID，否则生成一个，并写入 context 与响应头
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = "req-" + uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithRequestID(r.Context(), id)))
		})
	}
}

// ServedBy 在响应头中标明处理请求的服务器；请求不是经由监听器到达时不设置
func ServedBy() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := httpserver.ServerFrom(r.Context()); ok {
				w.Header().Set(HeaderServedBy, id.String())
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders 管理端点的响应不允许嵌入与缓存
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
