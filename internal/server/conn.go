package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/ctxkeys"
	"github.com/BaSui01/httplistener/internal/response"
	"github.com/BaSui01/httplistener/internal/telemetry"
	"github.com/BaSui01/httplistener/internal/transport"
)

const (
	defaultMaxHeaderBytes = 1 << 20
	// bufio.Reader 默认缓冲区大小，计入请求头读取上限
	readBufferSize = 4096
	// 响应结束后最多丢弃这么多未读的请求体字节，超过则关闭连接
	maxBodyDrain = 256 << 10
)

// =============================================================================
// 🔁 连接请求循环
// =============================================================================

func (s *Server) serveConn(nc net.Conn) {
	defer s.connWG.Done()

	scheme := "http"
	if cfg := s.tlsConfig.Load(); cfg != nil {
		nc = tls.Server(nc, cfg)
		scheme = "https"
	}

	var clk clock.Clock
	if s.res.Reaper != nil {
		clk = s.res.Reaper.Clock()
	}
	conn := transport.NewConn(nc, transport.ConnOptions{
		Selector:     s.res.Selector,
		WriteTimeout: s.res.WriteTimeout,
		Clock:        clk,
		Logger:       s.logger,
		OnClose: func(c *transport.Conn) {
			s.untrack(c)
			if s.res.Reaper != nil {
				s.res.Reaper.Untrack(c)
			}
			s.res.Metrics.ConnectionClosed()
		},
	})
	s.res.Metrics.ConnectionOpened()
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer conn.Close()

	if s.res.Reaper != nil {
		s.res.Reaper.Track(conn, s.opts.ConnectionIdleTimeout)
	}
	s.logger.Debug("connection accepted", zap.String("conn_id", conn.ID()), zap.Stringer("remote", nc.RemoteAddr()))

	if tc, ok := nc.(*tls.Conn); ok {
		if err := tc.HandshakeContext(s.ctx); err != nil {
			s.logger.Debug("tls handshake failed", zap.String("conn_id", conn.ID()), zap.Error(err))
			return
		}
	}

	headerLimit := int64(s.res.MaxHeaderBytes)
	if headerLimit <= 0 {
		headerLimit = defaultMaxHeaderBytes
	}
	headerLimit += readBufferSize

	lr := &io.LimitedReader{R: activityReader{conn}, N: math.MaxInt64}
	br := bufio.NewReaderSize(lr, readBufferSize)

	for {
		lr.N = headerLimit
		httpReq, err := http.ReadRequest(br)
		if err != nil {
			s.rejectUnreadable(conn, err, lr.N <= 0)
			return
		}
		lr.N = math.MaxInt64

		if !s.serveRequest(conn, br, httpReq, scheme) || conn.IsClosed() {
			return
		}
	}
}

// activityReader records every successful read as connection activity.
type activityReader struct {
	conn *transport.Conn
}

func (r activityReader) Read(p []byte) (int, error) {
	n, err := r.conn.NetConn().Read(p)
	if n > 0 {
		r.conn.Touch()
	}
	return n, err
}

// rejectUnreadable answers a request that could not be parsed. Clean
// closes and network errors are dropped silently.
func (s *Server) rejectUnreadable(conn *transport.Conn, err error, tooLarge bool) {
	if conn.IsClosed() {
		return
	}
	if !tooLarge {
		var ne net.Error
		if errors.Is(err, io.EOF) || errors.As(err, &ne) {
			return
		}
	}

	status := http.StatusBadRequest
	if tooLarge {
		status = http.StatusRequestHeaderFieldsTooLarge
	}
	s.logger.Debug("rejecting unreadable request", zap.String("conn_id", conn.ID()), zap.Error(err), zap.Int("status", status))

	resp := plainResponse(status, nil)
	resp.Headers.Set(httpmsg.HeaderConnection, httpmsg.Close)
	ex := s.newExchange(s.ctx, conn, nil, trace.SpanFromContext(s.ctx))
	ex.ResponseReady(resp, nil)
	ex.wait()
}

// serveRequest handles one request and reports whether the connection may
// carry another one.
func (s *Server) serveRequest(conn *transport.Conn, br *bufio.Reader, httpReq *http.Request, scheme string) bool {
	req := httpmsg.FromHTTPRequest(httpReq, scheme)
	req.RemoteAddr = conn.RemoteAddr().String()

	if websocket.IsWebSocketUpgrade(httpReq) {
		if e := s.ws.lookup(req.Path); e != nil {
			s.serveWebSocket(conn, br, httpReq, e)
			return false
		}
	}

	conn.SetProcessing(true)
	ctx := ctxkeys.WithServer(ctxkeys.WithConnectionID(s.ctx, conn.ID()), s.opts.Identifier)
	ctx, span := s.res.Tracer.StartRequest(ctx, req, s.bound)
	ex := s.newExchange(ctx, conn, req, span)

	route := s.handlers.resolve(req.Method, req.Path)
	if route.status != 0 {
		ex.ResponseReady(plainResponse(route.status, route.allow), nil)
	} else {
		s.dispatch(ex, route.entry)
	}

	keepAlive := ex.wait()
	conn.SetProcessing(false)

	if keepAlive && !drainBody(httpReq.Body) {
		return false
	}
	return keepAlive
}

func (s *Server) dispatch(ex *exchange, e *handlerEntry) {
	rc := httpserver.RequestContext{
		Context:       ctxkeys.WithPathParams(ex.ctx, e.params(splitPath(ex.req.Path))),
		Request:       ex.req,
		ServerAddress: s.opts.Address,
		ConnectionID:  ex.conn.ID(),
	}

	sch := s.scheduler()
	err := sch.Submit(ex.ctx, func(context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("request handler panicked",
					zap.Any("panic", r),
					zap.String("method", ex.req.Method),
					zap.String("path", ex.req.Path))
				ex.ResponseReady(plainResponse(http.StatusInternalServerError, nil), nil)
			}
		}()
		e.handler.HandleRequest(rc, ex)
		return nil
	})
	if err != nil {
		s.res.Metrics.RecordSchedulerRejection(sch.Name())
		s.logger.Warn("request rejected by scheduler", zap.String("scheduler", sch.Name()), zap.Error(err))
		ex.ResponseReady(plainResponse(http.StatusServiceUnavailable, nil), nil)
	}
}

// drainBody discards what the handler left unread so the next request can
// be parsed. It reports false when the body was too large to drain.
func drainBody(body io.ReadCloser) bool {
	if body == nil || body == http.NoBody {
		return true
	}
	defer body.Close()
	n, err := io.CopyN(io.Discard, body, maxBodyDrain+1)
	if n > maxBodyDrain {
		return false
	}
	return err == nil || errors.Is(err, io.EOF)
}

// =============================================================================
// 📤 响应交付
// =============================================================================

// exchange is the ResponseReadyCallback handed to request handlers. The
// first response wins; later ones are dropped.
type exchange struct {
	server *Server
	ctx    context.Context
	conn   *transport.Conn
	req    *httpmsg.Request
	span   trace.Span

	once sync.Once
	done chan bool
}

func (s *Server) newExchange(ctx context.Context, conn *transport.Conn, req *httpmsg.Request, span trace.Span) *exchange {
	return &exchange{
		server: s,
		ctx:    ctx,
		conn:   conn,
		req:    req,
		span:   span,
		done:   make(chan bool, 1),
	}
}

func (ex *exchange) ResponseReady(resp *httpmsg.Response, status httpserver.ResponseStatusCallback) {
	sent := false
	ex.once.Do(func() {
		sent = true
		ex.send(resp, status)
	})
	if !sent {
		ex.server.logger.Warn("response already sent, dropping duplicate", zap.String("conn_id", ex.conn.ID()))
	}
}

func (ex *exchange) send(resp *httpmsg.Response, status httpserver.ResponseStatusCallback) {
	s := ex.server
	if resp == nil {
		resp = plainResponse(http.StatusInternalServerError, nil)
	}

	method := "unknown"
	if ex.req != nil {
		method = ex.req.Method
	}
	s.res.Metrics.RecordRequest(method, resp.StatusCode)

	opts := response.Options{
		UsePersistentConnections: s.opts.UsePersistentConnections,
		ChunkSize:                s.res.ChunkSize,
		Buffers:                  s.res.Buffers,
		Logger:                   s.logger,
	}
	if s.res.Metrics != nil {
		opts.Observer = s.res.Metrics
	}

	cb := &deliveryCallback{exchange: ex, user: status, status: resp.StatusCode}
	h := response.New(ex.conn, ex.req, resp, cb, opts)
	cb.handler = h
	h.Start()
}

// wait blocks until delivery ended or the connection went away and
// reports whether the connection stays open.
func (ex *exchange) wait() bool {
	select {
	case keep := <-ex.done:
		return keep
	case <-ex.conn.Done():
		return false
	}
}

// deliveryCallback ends the span, forwards to the handler's own status
// callback and releases the connection loop.
type deliveryCallback struct {
	exchange *exchange
	user     httpserver.ResponseStatusCallback
	handler  response.Handler
	status   int
}

func (d *deliveryCallback) ResponseSendSuccessfully() {
	telemetry.EndResponse(d.exchange.span, d.status, nil)
	if d.user != nil {
		d.notify(func() { d.user.ResponseSendSuccessfully() })
	}
	d.exchange.done <- d.handler.KeepAlive()
}

func (d *deliveryCallback) OnErrorSendingResponse(err error) {
	telemetry.EndResponse(d.exchange.span, d.status, err)
	d.exchange.server.logger.Debug("response delivery failed",
		zap.String("conn_id", d.exchange.conn.ID()),
		zap.Int("status", d.status),
		zap.Error(err))
	if d.user != nil {
		d.notify(func() { d.user.OnErrorSendingResponse(err) })
	}
	d.exchange.done <- false
}

func (d *deliveryCallback) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.exchange.server.logger.Error("response status callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

func plainResponse(status int, allow []string) *httpmsg.Response {
	b := httpmsg.NewResponseBuilder().
		Status(status).
		Header(httpmsg.HeaderContentType, "text/plain; charset=utf-8").
		Entity(httpmsg.NewByteArrayEntity([]byte(http.StatusText(status) + "\n")))
	if len(allow) > 0 {
		b.Header("Allow", strings.Join(allow, ", "))
	}
	return b.Build()
}
