package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/types"
)

// MockHTTPServer 是 httpserver.HTTPServer 的 testify 模拟
type MockHTTPServer struct {
	mock.Mock
}

func (m *MockHTTPServer) Start() (httpserver.HTTPServer, error) {
	args := m.Called()
	srv, _ := args.Get(0).(httpserver.HTTPServer)
	return srv, args.Error(1)
}

func (m *MockHTTPServer) Stop() httpserver.HTTPServer {
	args := m.Called()
	srv, _ := args.Get(0).(httpserver.HTTPServer)
	return srv
}

func (m *MockHTTPServer) Dispose() {
	m.Called()
}

func (m *MockHTTPServer) ServerAddress() types.ServerAddress {
	return m.Called().Get(0).(types.ServerAddress)
}

func (m *MockHTTPServer) Protocol() types.Protocol {
	return m.Called().Get(0).(types.Protocol)
}

func (m *MockHTTPServer) IsStopping() bool {
	return m.Called().Bool(0)
}

func (m *MockHTTPServer) IsStopped() bool {
	return m.Called().Bool(0)
}

func (m *MockHTTPServer) AddRequestHandler(methods []string, path string, handler httpserver.RequestHandler) httpserver.RequestHandlerManager {
	mgr, _ := m.Called(methods, path, handler).Get(0).(httpserver.RequestHandlerManager)
	return mgr
}

func (m *MockHTTPServer) AddWebSocketHandler(handler httpserver.WebSocketHandler) httpserver.WebSocketHandlerManager {
	mgr, _ := m.Called(handler).Get(0).(httpserver.WebSocketHandlerManager)
	return mgr
}

func (m *MockHTTPServer) EnableTLS(factory httpserver.TLSContextFactory) error {
	return m.Called(factory).Error(0)
}

func (m *MockHTTPServer) DisableTLS() {
	m.Called()
}

// MockHandlerManager 是 RequestHandlerManager 与 WebSocketHandlerManager 的模拟
type MockHandlerManager struct {
	mock.Mock
}

func (m *MockHandlerManager) Stop()    { m.Called() }
func (m *MockHandlerManager) Start()   { m.Called() }
func (m *MockHandlerManager) Dispose() { m.Called() }

var (
	_ httpserver.HTTPServer              = (*MockHTTPServer)(nil)
	_ httpserver.RequestHandlerManager   = (*MockHandlerManager)(nil)
	_ httpserver.WebSocketHandlerManager = (*MockHandlerManager)(nil)
)
