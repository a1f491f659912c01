package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
)

// MockStatusCallback 是 httpserver.ResponseStatusCallback 的 testify 模拟
type MockStatusCallback struct {
	mock.Mock
}

func (m *MockStatusCallback) ResponseSendSuccessfully() {
	m.Called()
}

func (m *MockStatusCallback) OnErrorSendingResponse(err error) {
	m.Called(err)
}

// RecordingStatusCallback 记录状态回调，并通过 Done 通知首次结果
type RecordingStatusCallback struct {
	mu        sync.Mutex
	successes int
	errs      []error
	done      chan struct{}
	once      sync.Once
}

// NewRecordingStatusCallback 创建记录型回调
func NewRecordingStatusCallback() *RecordingStatusCallback {
	return &RecordingStatusCallback{done: make(chan struct{})}
}

func (r *RecordingStatusCallback) ResponseSendSuccessfully() {
	r.mu.Lock()
	r.successes++
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *RecordingStatusCallback) OnErrorSendingResponse(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

// Done 在第一次回调后关闭
func (r *RecordingStatusCallback) Done() <-chan struct{} {
	return r.done
}

// Successes 返回成功回调次数
func (r *RecordingStatusCallback) Successes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes
}

// Errors 返回收到的错误
func (r *RecordingStatusCallback) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Calls 返回回调总次数
func (r *RecordingStatusCallback) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.successes + len(r.errs)
}

// MockRequestHandler 是 httpserver.RequestHandler 的 testify 模拟
type MockRequestHandler struct {
	mock.Mock
}

func (m *MockRequestHandler) HandleRequest(rc httpserver.RequestContext, cb httpserver.ResponseReadyCallback) {
	m.Called(rc, cb)
}

// StaticHandler 返回固定响应的请求处理器
func StaticHandler(status int, body string, headers ...string) httpserver.RequestHandler {
	return httpserver.RequestHandlerFunc(func(_ httpserver.RequestContext, cb httpserver.ResponseReadyCallback) {
		b := httpmsg.NewResponseBuilder().Status(status).Entity(httpmsg.NewByteArrayEntity([]byte(body)))
		for i := 0; i+1 < len(headers); i += 2 {
			b.Header(headers[i], headers[i+1])
		}
		cb.ResponseReady(b.Build(), httpserver.StatusCallbackFuncs{})
	})
}

var (
	_ httpserver.ResponseStatusCallback = (*MockStatusCallback)(nil)
	_ httpserver.ResponseStatusCallback = (*RecordingStatusCallback)(nil)
	_ httpserver.RequestHandler         = (*MockRequestHandler)(nil)
)
