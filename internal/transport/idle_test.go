package transport_test

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/httplistener/internal/transport"
	"github.com/BaSui01/httplistener/testutil"
	"github.com/BaSui01/httplistener/testutil/mocks"
)

func idleConn(t *testing.T, clk clock.Clock) *transport.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { _ = client.Close() })
	c := transport.NewConn(server, transport.ConnOptions{Clock: clk})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestIdleReaper_SweepClosesExpired(t *testing.T) {
	mock := clock.NewMock()
	r := transport.NewIdleReaper(nil, time.Second, mock, zaptest.NewLogger(t))

	var reaped atomic.Int32
	r.OnReap(func(*transport.Conn) { reaped.Add(1) })

	short := idleConn(t, mock)
	long := idleConn(t, mock)
	never := idleConn(t, mock)
	r.Track(short, 5*time.Second)
	r.Track(long, time.Minute)
	r.Track(never, 0)
	assert.Equal(t, 2, r.Tracked())

	mock.Add(4 * time.Second)
	assert.Equal(t, 0, r.Sweep())

	mock.Add(time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.True(t, short.IsClosed())
	assert.False(t, long.IsClosed())
	assert.False(t, never.IsClosed())
	assert.Equal(t, int32(1), reaped.Load())
	assert.Equal(t, 1, r.Tracked())
}

func TestIdleReaper_ActivityAndProcessingDeferReaping(t *testing.T) {
	mock := clock.NewMock()
	r := transport.NewIdleReaper(nil, time.Second, mock, zaptest.NewLogger(t))

	active := idleConn(t, mock)
	busy := idleConn(t, mock)
	r.Track(active, 5*time.Second)
	r.Track(busy, 5*time.Second)

	mock.Add(3 * time.Second)
	active.Touch()
	busy.SetProcessing(true)

	mock.Add(3 * time.Second)
	assert.Equal(t, 0, r.Sweep())

	mock.Add(10 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.True(t, active.IsClosed())
	assert.False(t, busy.IsClosed())

	busy.SetProcessing(false)
	mock.Add(5 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.True(t, busy.IsClosed())
}

func TestIdleReaper_ForgetsClosedAndUntracked(t *testing.T) {
	mock := clock.NewMock()
	r := transport.NewIdleReaper(nil, time.Second, mock, zaptest.NewLogger(t))

	closed := idleConn(t, mock)
	untracked := idleConn(t, mock)
	r.Track(closed, time.Second)
	r.Track(untracked, time.Second)

	_ = closed.Close()
	r.Untrack(untracked)

	mock.Add(time.Minute)
	assert.Equal(t, 0, r.Sweep())
	assert.Equal(t, 0, r.Tracked())
	assert.False(t, untracked.IsClosed())
}

func TestIdleReaper_TickerRunsSweepsOnScheduler(t *testing.T) {
	mock := clock.NewMock()
	sched := mocks.NewInlineScheduler("idle_timeout")
	r := transport.NewIdleReaper(sched, time.Second, mock, zaptest.NewLogger(t))
	assert.Same(t, mock, r.Clock())

	c := idleConn(t, mock)
	r.Track(c, 2*time.Second)

	r.Start()
	defer r.Stop()

	testutil.AssertEventuallyTrue(t, func() bool {
		mock.Add(time.Second)
		return c.IsClosed()
	}, 2*time.Second)
	assert.Positive(t, sched.Submitted())
}

func TestIdleReaper_StopIsIdempotent(t *testing.T) {
	r := transport.NewIdleReaper(nil, 0, nil, nil)
	assert.NotNil(t, r.Clock())
	r.Start()
	r.Stop()
	r.Stop()
}
