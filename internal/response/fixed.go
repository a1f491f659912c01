package response

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
	"github.com/BaSui01/httplistener/internal/transport"
)

// FixedHandler sends a response whose body is already in memory. Headers
// and body go out in a single write.
type FixedHandler struct {
	base
	body []byte
}

// NewFixedHandler creates a handler for a non-streaming response.
func NewFixedHandler(ctx transport.Context, req *httpmsg.Request, resp *httpmsg.Response, cb httpserver.ResponseStatusCallback, opts Options) *FixedHandler {
	opts = opts.withDefaults()
	h := &FixedHandler{}
	h.init(ctx, req, resp, cb, opts)
	h.logger = opts.Logger.With(zap.String("component", "fixed_response"))

	var body []byte
	if resp.Entity != nil {
		body = resp.Entity.Bytes()
	}
	if resp.StatusCode >= 200 && resp.StatusCode != 204 && resp.StatusCode != 304 {
		h.headers.Del(httpmsg.HeaderTransferEncoding)
		h.headers.Set(httpmsg.HeaderContentLength, strconv.Itoa(len(body)))
	}
	if bodyAllowed(req, resp.StatusCode) {
		h.body = body
	}
	return h
}

// Start writes headers and body.
func (h *FixedHandler) Start() {
	block := h.headerBlock()
	payload := make([]byte, 0, len(block)+len(h.body))
	payload = append(payload, block...)
	payload = append(payload, h.body...)
	h.bodyBytes.Store(int64(len(h.body)))
	h.writeHeaders(h, payload)
}

// Completed finishes delivery; the only write carries the whole response.
func (h *FixedHandler) Completed() error {
	if h.State() == StateSendingHeaders {
		h.succeed()
	}
	return nil
}

var _ Handler = (*FixedHandler)(nil)
