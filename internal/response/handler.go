package response

import (
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/pool"
	"github.com/BaSui01/httplistener/internal/transport"
)

// DefaultChunkSize is the body chunk size used when Options leaves it unset.
const DefaultChunkSize = 8 * 1024

// Outcome labels reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Observer receives delivery events, typically for metrics.
type Observer interface {
	ChunkSent(bytes int)
	ResponseFinished(status int, outcome string, bodyBytes int64, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ChunkSent(int) {}
func (nopObserver) ResponseFinished(int, string, int64, time.Duration) {}

// Options configures a completion handler.
type Options struct {
	// UsePersistentConnections allows keep-alive when the request permits it.
	UsePersistentConnections bool
	// ChunkSize bounds a single body read. Defaults to DefaultChunkSize.
	ChunkSize int
	// Buffers supplies chunk buffers. Defaults to the shared pool for ChunkSize.
	Buffers  *pool.BufferPool
	Logger   *zap.Logger
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Buffers == nil || o.Buffers.Size() < BufferSize(o.ChunkSize) {
		o.Buffers = pool.ChunkBuffers(BufferSize(o.ChunkSize))
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// BufferSize is the buffer size a body chunk of chunkSize bytes needs
// including its chunked framing.
func BufferSize(chunkSize int) int {
	return chunkSize + chunkOverhead
}

// Handler delivers one response over a connection.
type Handler interface {
	transport.CompletionHandler
	// Start writes the header block. Everything after that is driven by
	// write completions.
	Start()
	State() State
	KeepAlive() bool
}

// New picks the handler for resp: streaming entities are sent chunk by
// chunk, everything else in a single write.
func New(ctx transport.Context, req *httpmsg.Request, resp *httpmsg.Response, cb httpserver.ResponseStatusCallback, opts Options) Handler {
	if resp.Entity != nil && resp.Entity.IsStreaming() {
		return NewStreamingHandler(ctx, req, resp, cb, opts)
	}
	return NewFixedHandler(ctx, req, resp, cb, opts)
}

// base holds what both handlers share: the connection decision, the
// header block and the exactly-once terminal transitions.
type base struct {
	ctx      transport.Context
	req      *httpmsg.Request
	resp     *httpmsg.Response
	callback httpserver.ResponseStatusCallback
	headers  *httpmsg.Headers

	keepAlive bool
	state     stateMachine
	started   time.Time
	bodyBytes atomic.Int64

	logger   *zap.Logger
	observer Observer

	// release frees handler resources on the terminal transition.
	release func(success bool)
}

func (b *base) init(ctx transport.Context, req *httpmsg.Request, resp *httpmsg.Response, cb httpserver.ResponseStatusCallback, opts Options) {
	value, explicit := DecideConnection(req, resp, opts.UsePersistentConnections)
	headers := resp.Headers.Clone()
	if !explicit {
		headers.Set(httpmsg.HeaderConnection, value)
	}
	b.ctx = ctx
	b.req = req
	b.resp = resp
	b.callback = cb
	b.headers = headers
	b.keepAlive = isKeepAlive(value)
	b.started = time.Now()
	b.logger = opts.Logger
	b.observer = opts.Observer
}

// State returns the current delivery state.
func (b *base) State() State {
	return b.state.load()
}

// KeepAlive reports whether the connection stays open after success.
func (b *base) KeepAlive() bool {
	return b.keepAlive
}

// Headers returns the headers as they go on the wire.
func (b *base) Headers() *httpmsg.Headers {
	return b.headers
}

// forceClose drops keep-alive for close-delimited bodies.
func (b *base) forceClose() {
	if !b.keepAlive {
		return
	}
	if _, ok := b.resp.Headers.Get(httpmsg.HeaderConnection); ok {
		b.keepAlive = false
		return
	}
	b.keepAlive = false
	b.headers.Set(httpmsg.HeaderConnection, httpmsg.Close)
}

func (b *base) headerBlock() []byte {
	return buildHeaderBlock(b.resp.StatusCode, b.resp.Reason(), b.headers, func(name string) {
		b.logger.Warn("dropping invalid response header", zap.String("header", name))
	})
}

// connection returns the live connection, or nil.
func (b *base) connection() transport.Connection {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Connection()
}

// writeHeaders moves Idle to SendingHeaders and writes payload.
func (b *base) writeHeaders(h transport.CompletionHandler, payload []byte) {
	if !b.state.advance(StateIdle, StateSendingHeaders) {
		return
	}
	conn := b.connection()
	if conn == nil {
		h.Failed(transport.ErrConnectionClosed)
		return
	}
	conn.Write(payload, h)
}

// Failed ends delivery with err. Only the first call has any effect: the
// body stream is closed, the connection is closed and the status callback
// is told about the error, each exactly once.
func (b *base) Failed(err error) {
	if !b.state.terminate(StateFailed) {
		return
	}
	if b.release != nil {
		b.release(false)
	}
	if conn := b.connection(); conn != nil {
		if cerr := conn.Close(); cerr != nil {
			b.logger.Debug("closing connection after failure", zap.Error(cerr))
		}
	}
	b.logger.Debug("response failed",
		zap.Int("status", b.resp.StatusCode),
		zap.Error(err),
	)
	b.observer.ResponseFinished(b.resp.StatusCode, OutcomeFailure, b.bodyBytes.Load(), time.Since(b.started))
	if b.callback != nil {
		b.callback.OnErrorSendingResponse(err)
	}
}

// succeed ends delivery successfully, once.
func (b *base) succeed() {
	if !b.state.terminate(StateCompleted) {
		return
	}
	if b.release != nil {
		b.release(true)
	}
	if !b.keepAlive {
		if conn := b.connection(); conn != nil {
			_ = conn.Close()
		}
	}
	b.observer.ResponseFinished(b.resp.StatusCode, OutcomeSuccess, b.bodyBytes.Load(), time.Since(b.started))
	if b.callback != nil {
		b.callback.ResponseSendSuccessfully()
	}
}

// closeStream closes r if it is an io.Closer, logging failures.
func closeStream(r io.Reader, logger *zap.Logger) {
	c, ok := r.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Debug("closing response body stream", zap.Error(err))
	}
}
