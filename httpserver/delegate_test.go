package httpserver_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/tlsutil"
	"github.com/BaSui01/httplistener/testutil/mocks"
	"github.com/BaSui01/httplistener/types"
)

func TestDelegate_ForwardsEveryOperation(t *testing.T) {
	inner := new(mocks.MockHTTPServer)
	d := httpserver.NewDelegate(inner)
	require.Same(t, inner, d.Delegate())

	addr := types.NewServerAddress(netip.MustParseAddr("127.0.0.1"), 8080)
	mgr := new(mocks.MockHandlerManager)
	handler := mocks.StaticHandler(200, "ok")
	factory := tlsutil.StaticContextFactory{}
	startErr := errors.New("bind failed")

	inner.On("Start").Return(inner, startErr).Once()
	inner.On("Stop").Return(inner).Once()
	inner.On("Dispose").Once()
	inner.On("ServerAddress").Return(addr).Once()
	inner.On("Protocol").Return(types.ProtocolHTTPS).Once()
	inner.On("IsStopping").Return(true).Once()
	inner.On("IsStopped").Return(false).Once()
	inner.On("AddRequestHandler", []string{"GET"}, "/x", mock.Anything).Return(mgr).Once()
	inner.On("AddWebSocketHandler", mock.Anything).Return(mgr).Once()
	inner.On("EnableTLS", factory).Return(nil).Once()
	inner.On("DisableTLS").Once()

	srv, err := d.Start()
	assert.Same(t, inner, srv)
	assert.ErrorIs(t, err, startErr)
	assert.Same(t, inner, d.Stop())
	d.Dispose()
	assert.Equal(t, addr, d.ServerAddress())
	assert.Equal(t, types.ProtocolHTTPS, d.Protocol())
	assert.True(t, d.IsStopping())
	assert.False(t, d.IsStopped())
	assert.Same(t, mgr, d.AddRequestHandler([]string{"GET"}, "/x", handler))
	assert.Same(t, mgr, d.AddWebSocketHandler(nil))
	assert.NoError(t, d.EnableTLS(factory))
	d.DisableTLS()

	inner.AssertExpectations(t)
}

func TestDelegate_NestedUnwrap(t *testing.T) {
	inner := new(mocks.MockHTTPServer)
	outer := httpserver.NewDelegate(httpserver.NewDelegate(inner))

	middle, ok := outer.Delegate().(*httpserver.Delegate)
	require.True(t, ok)
	assert.Same(t, inner, middle.Delegate())
}
