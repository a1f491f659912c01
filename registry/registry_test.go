package registry

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/config"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/tlsutil"
	"github.com/BaSui01/httplistener/testutil"
	"github.com/BaSui01/httplistener/testutil/fixtures"
	"github.com/BaSui01/httplistener/testutil/mocks"
	"github.com/BaSui01/httplistener/types"
)

// fakeResolver answers from a fixed table; unknown names fail.
type fakeResolver map[string][]netip.Addr

func (r fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	if ips, ok := r[host]; ok {
		return ips, nil
	}
	return nil, errors.New("no such host: " + host)
}

func newRegistry(t *testing.T) *ListenerConnectionManager {
	t.Helper()
	reg := New(Options{
		SelectorThreads: 2,
		WorkerThreads:   8,
		ChunkSize:       32,
		Resolver: fakeResolver{
			"app.local": {netip.MustParseAddr("127.0.0.1")},
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, reg.Initialize())
	t.Cleanup(func() { _ = reg.Dispose(context.Background()) })
	return reg
}

// =============================================================================
// 🔄 初始化与销毁
// =============================================================================

func TestRegistry_NotInitialized(t *testing.T) {
	reg := New(Options{})
	id := types.ServerIdentifier{Context: "app", Name: "svc"}

	_, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
	assert.True(t, types.IsErrorCode(err, types.ErrNotInitialized))

	_, err = reg.Lookup(id)
	assert.True(t, types.IsErrorCode(err, types.ErrNotInitialized))
	assert.False(t, reg.ContainsServerFor(fixtures.LoopbackAddress(0), id))
	assert.Nil(t, reg.Servers())

	// 未初始化时销毁是空操作
	assert.NoError(t, reg.Dispose(context.Background()))
}

func TestRegistry_InitializeIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	selector := reg.selector

	require.NoError(t, reg.Initialize())
	assert.Same(t, selector, reg.selector)
}

func TestRegistry_Defaults(t *testing.T) {
	reg := New(Options{})
	assert.GreaterOrEqual(t, reg.opts.SelectorThreads, 2)
	assert.Equal(t, config.DefaultListenerConfig().ChunkSize, reg.opts.ChunkSize)
	assert.Equal(t, types.DefaultTCPServerSocketProperties(), reg.opts.Socket)
}

func TestRegistry_DisposeOrderAndReuse(t *testing.T) {
	reg := newRegistry(t)
	id := types.ServerIdentifier{Context: "app1", Name: "svc"}

	srv, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, time.Minute, id)
	require.NoError(t, err)
	assert.False(t, srv.IsStopped())

	require.NoError(t, reg.Dispose(context.Background()))
	assert.True(t, srv.IsStopped())
	assert.True(t, reg.selector.IsStopped())
	assert.True(t, reg.workers.IsStopped())
	assert.True(t, reg.idle.IsStopped())

	_, err = reg.Lookup(id)
	assert.True(t, types.IsErrorCode(err, types.ErrServerNotFound))

	_, err = reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
	assert.True(t, types.IsErrorCode(err, types.ErrDisposed))
	assert.True(t, types.IsErrorCode(reg.Initialize(), types.ErrDisposed))
	assert.NoError(t, reg.Dispose(context.Background()))
}

func TestRegistry_DisposeHonoursDeadline(t *testing.T) {
	reg := newRegistry(t)
	id := types.ServerIdentifier{Context: "app1", Name: "stuck"}

	srv, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
	require.NoError(t, err)
	bound, err := reg.BoundAddress(id)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	srv.AddRequestHandler([]string{"GET"}, "/block", httpserver.RequestHandlerFunc(
		func(httpserver.RequestContext, httpserver.ResponseReadyCallback) {
			close(entered)
			<-release // 忽略 context，模拟卡住的业务处理
		}))

	client := testutil.DialRaw(t, bound.String())
	client.Send("GET /block HTTP/1.1\nHost: x\n\n")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = reg.Dispose(ctx)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
	assert.True(t, reg.workers.IsStopped())
	assert.True(t, reg.selector.IsStopped())

	// 超时未完成的服务器也已从注册表移除
	_, err = reg.Lookup(id)
	assert.True(t, types.IsErrorCode(err, types.ErrServerNotFound))
	assert.False(t, reg.ContainsServerFor(fixtures.LoopbackAddress(0), id))
}

// =============================================================================
// 🗂️ 创建与查找
// =============================================================================

func TestRegistry_CreateLookupAndDuplicate(t *testing.T) {
	reg := newRegistry(t)
	id := types.ServerIdentifier{Context: "app1", Name: "svc"}

	srv, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
	require.NoError(t, err)
	assert.False(t, srv.IsStopped())
	assert.Equal(t, types.ProtocolHTTP, srv.Protocol())

	// 注册表返回的服务器是委托包装
	d, ok := srv.(*httpserver.Delegate)
	require.True(t, ok)
	assert.NotNil(t, d.Delegate())

	_, err = reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, id)
	assert.True(t, types.IsErrorCode(err, types.ErrServerAlreadyExists))
	assert.Len(t, reg.Servers(), 1)

	found, err := reg.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, d.Delegate(), found.(*httpserver.Delegate).Delegate())
	assert.True(t, reg.ContainsServerFor(fixtures.LoopbackAddress(0), id))

	_, err = reg.Lookup(types.ServerIdentifier{Context: "app1", Name: "other"})
	assert.True(t, types.IsErrorCode(err, types.ErrServerNotFound))
}

func TestRegistry_CreateResolvesHost(t *testing.T) {
	reg := newRegistry(t)

	srv, err := reg.Create(testutil.TestContext(t), ServerConfiguration{
		Name:                     "api",
		Host:                     "app.local",
		UsePersistentConnections: true,
	}, "orders")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.ServerAddress().String())

	id := types.ServerIdentifier{Context: "orders", Name: "api"}
	bound, err := reg.BoundAddress(id)
	require.NoError(t, err)
	assert.NotZero(t, bound.Port)

	srv.AddRequestHandler([]string{"GET"}, "/ping", mocks.StaticHandler(http.StatusOK, "pong"))
	client := testutil.DialRaw(t, bound.String())
	client.Send("GET /ping HTTP/1.1\nHost: app.local\n\n")
	resp := client.ReadResponse(http.MethodGet)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	infos := reg.Servers()
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].Identifier)
	assert.Equal(t, "started", infos[0].State)
	assert.Equal(t, bound.String(), infos[0].Bound)
}

func TestRegistry_CreateWithUnresolvableHost(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.Create(testutil.TestContext(t), ServerConfiguration{Name: "api", Host: "missing.local"}, "orders")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrServerCreation))
	assert.Empty(t, reg.Servers())
}

func TestRegistry_CreateTLS(t *testing.T) {
	cert, err := tlsutil.SelfSigned("127.0.0.1")
	require.NoError(t, err)
	factory := tlsutil.StaticContextFactory{Config: tlsutil.ServerTLSConfig(cert)}

	reg := newRegistry(t)
	srv, err := reg.Create(testutil.TestContext(t), ServerConfiguration{
		Name:              "secure",
		Host:              "127.0.0.1",
		TLSContextFactory: factory,
	}, "orders")
	require.NoError(t, err)
	assert.Equal(t, types.ProtocolHTTPS, srv.Protocol())

	_, err = reg.CreateTLSServer(fixtures.LoopbackAddress(0), nil, nil, true, 0, types.ServerIdentifier{Name: "x"})
	assert.True(t, types.IsErrorCode(err, types.ErrServerCreation))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listener.WorkerThreads = 7
	cfg.Listener.AcceptRate = 50
	cfg.Socket.ReceiveBacklog = 128

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 7, opts.WorkerThreads)
	assert.Equal(t, 50.0, opts.AcceptRate)
	assert.Equal(t, 128, opts.Socket.ReceiveBacklog)
	assert.Equal(t, cfg.Listener.ChunkSize, opts.ChunkSize)
}

func TestRegistry_WildcardAndLoopbackCoexist(t *testing.T) {
	reg := newRegistry(t)
	local := fixtures.Identifier("local")
	public := fixtures.Identifier("public")

	_, err := reg.CreateServer(fixtures.LoopbackAddress(0), nil, true, 0, local)
	require.NoError(t, err)
	_, err = reg.CreateServer(fixtures.WildcardAddress(0), nil, true, 0, public)
	require.NoError(t, err)

	assert.True(t, reg.ContainsServerFor(fixtures.WildcardAddress(0), public))
	assert.False(t, reg.ContainsServerFor(fixtures.WildcardAddress(0), local))
	assert.Len(t, reg.Servers(), 2)
}
