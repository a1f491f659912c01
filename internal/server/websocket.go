package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/internal/ctxkeys"
	"github.com/BaSui01/httplistener/internal/transport"
)

// serveWebSocket upgrades the connection and hands it to the handler. The
// connection leaves the idle reaper and the request loop for good.
func (s *Server) serveWebSocket(conn *transport.Conn, br *bufio.Reader, httpReq *http.Request, e *wsEntry) {
	if e.stopped.Load() {
		resp := plainResponse(http.StatusServiceUnavailable, nil)
		resp.Headers.Set(httpmsg.HeaderConnection, httpmsg.Close)
		ex := s.newExchange(s.ctx, conn, nil, trace.SpanFromContext(s.ctx))
		ex.ResponseReady(resp, nil)
		ex.wait()
		return
	}

	if s.res.Reaper != nil {
		s.res.Reaper.Untrack(conn)
	}
	httpReq.RemoteAddr = conn.RemoteAddr().String()

	nc := conn.NetConn()
	w := &hijackWriter{
		nc:     nc,
		brw:    bufio.NewReadWriter(br, bufio.NewWriter(nc)),
		header: make(http.Header),
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: readBufferSize,
	}
	ws, err := upgrader.Upgrade(w, httpReq, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.String("conn_id", conn.ID()), zap.Error(err))
		return
	}
	defer ws.Close()

	conn.SetProcessing(true)
	ctx, cancel := context.WithCancel(ctxkeys.WithServer(ctxkeys.WithConnectionID(s.ctx, conn.ID()), s.opts.Identifier))
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Debug("websocket connection established", zap.String("conn_id", conn.ID()), zap.String("path", e.path))
	e.handler.HandleConnection(ctx, ws)
}

// hijackWriter lets the upgrader take over an already accepted connection.
// Before the hijack it can write a plain error response.
type hijackWriter struct {
	nc          net.Conn
	brw         *bufio.ReadWriter
	header      http.Header
	wroteHeader bool
	hijacked    bool
}

func (w *hijackWriter) Header() http.Header {
	return w.header
}

func (w *hijackWriter) WriteHeader(code int) {
	if w.wroteHeader || w.hijacked {
		return
	}
	w.wroteHeader = true
	w.header.Set(httpmsg.HeaderConnection, httpmsg.Close)
	_, _ = fmt.Fprintf(w.nc, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	_ = w.header.Write(w.nc)
	_, _ = io.WriteString(w.nc, "\r\n")
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	if w.hijacked {
		return 0, http.ErrHijacked
	}
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.nc.Write(p)
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.hijacked = true
	return w.nc, w.brw, nil
}
