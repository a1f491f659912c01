package ctxkeys

import (
	"context"

	"github.com/BaSui01/httplistener/types"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	connectionIDKey contextKey = "connection_id"
	serverKey       contextKey = "server"
	requestIDKey    contextKey = "request_id"
	pathParamsKey   contextKey = "path_params"
)

// WithConnectionID 设置连接 ID
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionID 获取连接 ID
func ConnectionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(connectionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithServer 设置处理请求的服务器标识
func WithServer(ctx context.Context, id types.ServerIdentifier) context.Context {
	return context.WithValue(ctx, serverKey, id)
}

// Server 获取处理请求的服务器标识
func Server(ctx context.Context) (types.ServerIdentifier, bool) {
	v, ok := ctx.Value(serverKey).(types.ServerIdentifier)
	return v, ok
}

// WithRequestID 设置请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取请求 ID
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithPathParams 设置路由匹配出的路径参数
func WithPathParams(ctx context.Context, params map[string]string) context.Context {
	if len(params) == 0 {
		return ctx
	}
	return context.WithValue(ctx, pathParamsKey, params)
}

// PathParams 获取路径参数；返回的 map 不应被修改
func PathParams(ctx context.Context) map[string]string {
	v, _ := ctx.Value(pathParamsKey).(map[string]string)
	return v
}
