// =============================================================================
// 🔌 MockConnection - 连接模拟实现
// =============================================================================
// 记录所有写入的字节，可同步或手动触发写完成回调，支持错误注入
//
// 使用方法:
//
//	conn := mocks.NewMockConnection()
//	handler := response.New(conn, req, resp, cb, opts)
//	handler.Start()
//	body := conn.Written()
// =============================================================================
package mocks

import (
	"bytes"
	"net"
	"sync"

	"github.com/BaSui01/httplistener/internal/transport"
)

// MockConnection 是 transport.Connection 的模拟实现，同时实现 transport.Context
type MockConnection struct {
	mu sync.Mutex

	id     string
	writes [][]byte

	// 手动模式下等待完成的写操作
	pending []transport.CompletionHandler
	manual  bool

	// 错误注入
	writeErr     error
	failOnWrite  int
	nilWhenClose bool
	detached     bool

	closeCalls int
	closed     bool
}

// NewMockConnection 创建同步完成写操作的模拟连接
func NewMockConnection() *MockConnection {
	return &MockConnection{id: "mock-conn"}
}

// WithManualCompletion 写操作挂起，直到调用 CompleteNext
func (m *MockConnection) WithManualCompletion() *MockConnection {
	m.manual = true
	return m
}

// WithWriteError 让第 n 次写操作（从 1 开始）以 err 失败，n <= 0 表示每次都失败
func (m *MockConnection) WithWriteError(n int, err error) *MockConnection {
	m.failOnWrite = n
	m.writeErr = err
	return m
}

// WithNilAfterClose 关闭后 Connection() 返回 nil
func (m *MockConnection) WithNilAfterClose() *MockConnection {
	m.nilWhenClose = true
	return m
}

// Detach 让 Connection() 立即返回 nil，模拟连接已被拆除
func (m *MockConnection) Detach() {
	m.mu.Lock()
	m.detached = true
	m.mu.Unlock()
}

// Connection 实现 transport.Context
func (m *MockConnection) Connection() transport.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached || (m.nilWhenClose && m.closed) {
		return nil
	}
	return m
}

// ID 实现 transport.Connection
func (m *MockConnection) ID() string {
	return m.id
}

// RemoteAddr 实现 transport.Connection
func (m *MockConnection) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

// Write 记录 p，并按模式通知 h
func (m *MockConnection) Write(p []byte, h transport.CompletionHandler) {
	m.mu.Lock()
	m.writes = append(m.writes, bytes.Clone(p))
	n := len(m.writes)
	fail := m.writeErr != nil && (m.failOnWrite <= 0 || m.failOnWrite == n)
	closed := m.closed
	manual := m.manual
	if !fail && !closed && manual {
		m.pending = append(m.pending, h)
	}
	m.mu.Unlock()

	switch {
	case closed:
		h.Failed(transport.ErrConnectionClosed)
	case fail:
		_ = m.Close()
		h.Failed(m.writeErr)
	case !manual:
		m.complete(h)
	}
}

// complete 与 transport.Conn 一致：Completed 返回错误时关闭连接并调用 Failed
func (m *MockConnection) complete(h transport.CompletionHandler) {
	if err := h.Completed(); err != nil {
		_ = m.Close()
		h.Failed(err)
	}
}

// CompleteNext 完成最早挂起的写操作，没有挂起写操作时返回 false
func (m *MockConnection) CompleteNext() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	h := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	m.complete(h)
	return true
}

// FailNext 以 err 结束最早挂起的写操作
func (m *MockConnection) FailNext(err error) bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	h := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	_ = m.Close()
	h.Failed(err)
	return true
}

// Pending 返回挂起的写操作数
func (m *MockConnection) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close 实现 transport.Connection
func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.closed = true
	return nil
}

// =============================================================================
// 📊 调用记录
// =============================================================================

// Writes 返回每次写入的字节副本
func (m *MockConnection) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount 返回写操作次数
func (m *MockConnection) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// Written 返回所有写入字节的拼接
func (m *MockConnection) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(bytes.Join(m.writes, nil))
}

// IsClosed 返回连接是否被关闭
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseCalls 返回 Close 调用次数
func (m *MockConnection) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// NilContext 是 Connection() 始终返回 nil 的上下文
type NilContext struct{}

// Connection 实现 transport.Context
func (NilContext) Connection() transport.Connection { return nil }

var (
	_ transport.Connection = (*MockConnection)(nil)
	_ transport.Context    = (*MockConnection)(nil)
	_ transport.Context    = NilContext{}
)
