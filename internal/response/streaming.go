package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/pool"
	"github.com/BaSui01/httplistener/internal/transport"
	"github.com/BaSui01/httplistener/types"
)

const (
	// maxChunkPrefix fits the hex size of any int32 chunk plus CRLF.
	maxChunkPrefix = 10
	// chunkOverhead is the framing space reserved around each chunk.
	chunkOverhead = maxChunkPrefix + 2
	// maxEmptyReads bounds consecutive (0, nil) reads from the body stream.
	maxEmptyReads = 100
)

var lastChunk = []byte("0\r\n\r\n")

type bodyMode int

const (
	// bodyNone sends headers only (HEAD, 1xx, 204, 304).
	bodyNone bodyMode = iota
	// bodyChunked frames every read as an HTTP/1.1 chunk.
	bodyChunked
	// bodyRaw copies the stream as is: the length is known from
	// Content-Length, or the body is delimited by closing the connection.
	bodyRaw
)

// StreamingHandler sends a response whose body is read from a stream, one
// chunk per write. Each write completion triggers the next read, so there is
// never more than one write outstanding and a slow client slows down the
// reads instead of growing a buffer.
//
// Reads run on the goroutine that reports the write completion; a stream
// that blocks holds that goroutine until it returns.
type StreamingHandler struct {
	base

	stream    io.Reader
	mode      bodyMode
	chunkSize int
	buffers   *pool.BufferPool
	buf       *[]byte
	eof       bool
	finishing atomic.Bool
}

// NewStreamingHandler creates a handler for a streaming response.
func NewStreamingHandler(ctx transport.Context, req *httpmsg.Request, resp *httpmsg.Response, cb httpserver.ResponseStatusCallback, opts Options) *StreamingHandler {
	opts = opts.withDefaults()
	h := &StreamingHandler{
		chunkSize: opts.ChunkSize,
		buffers:   opts.Buffers,
	}
	h.init(ctx, req, resp, cb, opts)
	h.logger = opts.Logger.With(zap.String("component", "streaming_response"))
	if resp.Entity != nil {
		h.stream = resp.Entity.Reader()
	}
	h.release = h.releaseResources

	switch {
	case !bodyAllowed(req, resp.StatusCode) || h.stream == nil:
		h.mode = bodyNone
	case h.headers.Has(httpmsg.HeaderContentLength):
		h.mode = bodyRaw
	case req != nil && req.IsHTTP10():
		h.mode = bodyRaw
		h.forceClose()
	default:
		h.mode = bodyChunked
		h.headers.Del(httpmsg.HeaderContentLength)
		h.headers.Set(httpmsg.HeaderTransferEncoding, httpmsg.Chunked)
	}
	return h
}

// Start writes the header block.
func (h *StreamingHandler) Start() {
	h.writeHeaders(h, h.headerBlock())
}

// Completed continues delivery after a write finished.
func (h *StreamingHandler) Completed() error {
	switch h.State() {
	case StateSendingHeaders:
		if h.mode == bodyNone {
			h.succeed()
			return nil
		}
		if !h.state.advance(StateSendingHeaders, StateSendingBody) {
			return nil
		}
		return h.SendBodyChunk()
	case StateSendingBody:
		if h.finishing.Load() {
			h.succeed()
			return nil
		}
		return h.SendBodyChunk()
	default:
		return nil
	}
}

// SendBodyChunk reads the next chunk from the body stream and writes it.
//
// At end of stream the terminating chunk is written and delivery completes
// once it is flushed. An I/O error from the stream, or an error whose direct
// cause is an I/O error, is returned to the caller unchanged; any other read
// failure ends delivery through Failed.
func (h *StreamingHandler) SendBodyChunk() error {
	if h.State().IsTerminal() {
		return nil
	}
	conn := h.connection()
	if conn == nil {
		h.Failed(transport.ErrConnectionClosed)
		return nil
	}
	if h.eof {
		h.finish(conn)
		return nil
	}

	buf := h.buffer()
	n, err := h.read((*buf)[maxChunkPrefix : maxChunkPrefix+h.chunkSize])
	if err != nil && !errors.Is(err, io.EOF) {
		if ioErr := transport.IOCause(err); ioErr != nil {
			return ioErr
		}
		h.Failed(types.NewError(types.ErrStream, "reading response body").WithCause(err))
		return nil
	}
	if err != nil {
		h.eof = true
	}
	if n == 0 {
		h.finish(conn)
		return nil
	}

	h.bodyBytes.Add(int64(n))
	h.observer.ChunkSent(n)
	conn.Write(h.frame(*buf, n), h)
	return nil
}

// read fills p, retrying streams that return no data and no error.
func (h *StreamingHandler) read(p []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("response body stream panicked: %v", r)
		}
	}()
	for i := 0; i < maxEmptyReads; i++ {
		n, err = h.stream.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// frame wraps the n bytes read into buf at maxChunkPrefix.
func (h *StreamingHandler) frame(buf []byte, n int) []byte {
	end := maxChunkPrefix + n
	if h.mode != bodyChunked {
		return buf[maxChunkPrefix:end]
	}
	prefix := strconv.FormatInt(int64(n), 16) + "\r\n"
	start := maxChunkPrefix - len(prefix)
	copy(buf[start:], prefix)
	copy(buf[end:], "\r\n")
	return buf[start : end+2]
}

func (h *StreamingHandler) finish(conn transport.Connection) {
	if h.mode != bodyChunked {
		h.succeed()
		return
	}
	if !h.finishing.CompareAndSwap(false, true) {
		return
	}
	conn.Write(lastChunk, h)
}

func (h *StreamingHandler) buffer() *[]byte {
	if h.buf == nil {
		h.buf = h.buffers.Get()
	}
	return h.buf
}

func (h *StreamingHandler) releaseResources(success bool) {
	closeStream(h.stream, h.logger)
	// A failed response may still have a write in flight that references
	// the buffer, so only a completed one hands it back.
	if success && h.buf != nil {
		h.buffers.Put(h.buf)
		h.buf = nil
	}
}

var _ Handler = (*StreamingHandler)(nil)
