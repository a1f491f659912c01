package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/types"
)

// CompletionHandler is notified when an asynchronous write ends.
//
// Completed runs once the bytes were handed to the socket. An error returned
// from Completed is routed back by the connection: it is logged, the
// connection is closed and Failed is called with it.
type CompletionHandler interface {
	Completed() error
	Failed(err error)
}

// Connection is the write side of an accepted connection. Writes never
// block the caller; at most one write per connection should be pending.
type Connection interface {
	ID() string
	Write(p []byte, h CompletionHandler)
	Close() error
	RemoteAddr() net.Addr
}

// Context carries the connection a response is written to. Connection
// returns nil once the connection has been torn down.
type Context interface {
	Connection() Connection
}

// ErrConnectionClosed is reported for writes on a closed connection.
var ErrConnectionClosed = types.NewError(types.ErrConnClosed, "connection closed")

// ConnOptions configures a Conn.
type ConnOptions struct {
	// Selector runs the socket writes.
	Selector     httpserver.Scheduler
	WriteTimeout time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
	// OnClose runs once, after the socket is closed.
	OnClose func(c *Conn)
}

// Conn wraps a net.Conn with asynchronous writes executed on the selector
// scheduler.
type Conn struct {
	id           string
	nc           net.Conn
	selector     httpserver.Scheduler
	writeTimeout time.Duration
	clock        clock.Clock
	logger       *zap.Logger
	onClose      func(c *Conn)

	lastActive atomic.Int64
	processing atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
	done       chan struct{}
}

// NewConn wraps nc.
func NewConn(nc net.Conn, opts ConnOptions) *Conn {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	id := uuid.NewString()
	c := &Conn{
		id:           id,
		nc:           nc,
		selector:     opts.Selector,
		writeTimeout: opts.WriteTimeout,
		clock:        opts.Clock,
		logger:       opts.Logger.With(zap.String("conn_id", id)),
		onClose:      opts.OnClose,
		done:         make(chan struct{}),
	}
	c.Touch()
	return c
}

// ID returns a unique connection id.
func (c *Conn) ID() string {
	return c.id
}

// NetConn returns the wrapped connection.
func (c *Conn) NetConn() net.Conn {
	return c.nc
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Connection implements Context.
func (c *Conn) Connection() Connection {
	if c.closed.Load() {
		return nil
	}
	return c
}

// Touch records I/O activity.
func (c *Conn) Touch() {
	c.lastActive.Store(c.clock.Now().UnixNano())
}

// IdleSince returns the time of the last recorded activity.
func (c *Conn) IdleSince() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// SetProcessing marks the connection as waiting on a request handler.
// Processing connections are never reaped as idle.
func (c *Conn) SetProcessing(v bool) {
	c.processing.Store(v)
	c.Touch()
}

// IsProcessing reports whether a request handler is producing a response.
func (c *Conn) IsProcessing() bool {
	return c.processing.Load()
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Write schedules p on the selector and returns immediately. h is told the
// outcome from the selector goroutine.
func (c *Conn) Write(p []byte, h CompletionHandler) {
	if c.closed.Load() {
		h.Failed(ErrConnectionClosed)
		return
	}
	if c.selector == nil {
		c.write(p, h)
		return
	}

	err := c.selector.Submit(context.Background(), func(context.Context) error {
		c.write(p, h)
		return nil
	})
	if err != nil {
		c.logger.Warn("write rejected by selector", zap.Error(err))
		_ = c.Close()
		h.Failed(types.NewError(types.ErrSchedulerFull, "write could not be scheduled").WithCause(err))
	}
}

func (c *Conn) write(p []byte, h CompletionHandler) {
	if c.closed.Load() {
		h.Failed(ErrConnectionClosed)
		return
	}
	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if _, err := c.nc.Write(p); err != nil {
		_ = c.Close()
		h.Failed(&IOError{Op: "write", Err: err})
		return
	}
	c.Touch()

	if err := h.Completed(); err != nil {
		c.logger.Warn("write completion failed, closing connection", zap.Error(err))
		_ = c.Close()
		h.Failed(err)
	}
}

// Close closes the socket once. Later calls return nil.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.nc.Close()
		close(c.done)
		c.logger.Debug("connection closed")
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

var _ Context = (*Conn)(nil)
