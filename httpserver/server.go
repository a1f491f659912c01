package httpserver

import (
	"context"
	"crypto/tls"

	"github.com/gorilla/websocket"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/types"
)

// =============================================================================
// 🌐 HTTP 服务器能力集
// =============================================================================

// HTTPServer 是注册表产出的监听服务器
type HTTPServer interface {
	// Start binds the listening socket. Starting a started server is a no-op.
	Start() (HTTPServer, error)
	// Stop stops accepting connections; in-flight responses finish.
	Stop() HTTPServer
	// Dispose stops the server, closes every connection and releases its
	// registry entry. A disposed server cannot be started again.
	Dispose()

	ServerAddress() types.ServerAddress
	Protocol() types.Protocol
	IsStopping() bool
	IsStopped() bool

	// AddRequestHandler registers handler for path. A nil or empty methods
	// list accepts every method.
	AddRequestHandler(methods []string, path string, handler RequestHandler) RequestHandlerManager
	AddWebSocketHandler(handler WebSocketHandler) WebSocketHandlerManager

	// EnableTLS switches new connections to TLS using factory.
	EnableTLS(factory TLSContextFactory) error
	// DisableTLS switches new connections back to plain HTTP.
	DisableTLS()
}

// RequestContext 请求上下文
type RequestContext struct {
	Context       context.Context
	Request       *httpmsg.Request
	ServerAddress types.ServerAddress
	ConnectionID  string
}

// RequestHandler produces a response for a parsed request. It runs on the
// server's worker scheduler and reports its answer through cb exactly once.
type RequestHandler interface {
	HandleRequest(rc RequestContext, cb ResponseReadyCallback)
}

// RequestHandlerFunc adapts a function to RequestHandler.
type RequestHandlerFunc func(rc RequestContext, cb ResponseReadyCallback)

// HandleRequest calls f.
func (f RequestHandlerFunc) HandleRequest(rc RequestContext, cb ResponseReadyCallback) {
	f(rc, cb)
}

// ResponseReadyCallback receives the response a handler produced.
type ResponseReadyCallback interface {
	ResponseReady(resp *httpmsg.Response, status ResponseStatusCallback)
}

// ResponseStatusCallback is told how delivery of a response ended. Exactly
// one of its methods is called, once.
type ResponseStatusCallback interface {
	ResponseSendSuccessfully()
	OnErrorSendingResponse(err error)
}

// StatusCallbackFuncs adapts two functions to ResponseStatusCallback.
// Nil functions are skipped.
type StatusCallbackFuncs struct {
	OnSuccess func()
	OnError   func(err error)
}

func (f StatusCallbackFuncs) ResponseSendSuccessfully() {
	if f.OnSuccess != nil {
		f.OnSuccess()
	}
}

func (f StatusCallbackFuncs) OnErrorSendingResponse(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// RequestHandlerManager controls one registered request handler.
type RequestHandlerManager interface {
	// Stop makes the handler answer 503 until started again.
	Stop()
	Start()
	// Dispose removes the handler; its path then answers 404.
	Dispose()
}

// WebSocketHandler serves upgraded connections on Path.
type WebSocketHandler interface {
	Path() string
	HandleConnection(ctx context.Context, conn *websocket.Conn)
}

// WebSocketHandlerManager controls one registered WebSocket handler.
type WebSocketHandlerManager interface {
	Stop()
	Start()
	Dispose()
}

// TLSContextFactory supplies the server side TLS configuration.
type TLSContextFactory interface {
	ServerTLSConfig() (*tls.Config, error)
}

// Task is a unit of work run by a Scheduler.
type Task func(ctx context.Context) error

// Scheduler runs tasks asynchronously.
type Scheduler interface {
	Name() string
	Submit(ctx context.Context, task Task) error
	Stop()
}

// SchedulerSupplier returns the scheduler a server runs request handlers on.
// A nil supplier, or one returning nil, selects the shared worker pool.
type SchedulerSupplier func() Scheduler
