package httpserver

import (
	"bytes"
	"io"
	"net/http"

	"github.com/BaSui01/httplistener/httpmsg"
)

// HTTPHandler serves requests with a net/http handler. The handler's output
// is buffered and sent as a fixed body once ServeHTTP returns.
func HTTPHandler(h http.Handler) RequestHandler {
	return RequestHandlerFunc(func(rc RequestContext, cb ResponseReadyCallback) {
		req := rc.Request
		body := io.Reader(http.NoBody)
		if req.Entity != nil && req.Entity.Length() != 0 {
			body = req.Entity.Reader()
		}

		httpReq, err := http.NewRequestWithContext(rc.Context, req.Method, req.URI.String(), body)
		if err != nil {
			cb.ResponseReady(httpmsg.NewResponseBuilder().
				Status(http.StatusBadRequest).
				Entity(httpmsg.NewByteArrayEntity([]byte(err.Error()))).
				Build(), StatusCallbackFuncs{})
			return
		}
		httpReq.Header = req.Headers.HTTPHeader()
		httpReq.Host, _ = req.Headers.Get(httpmsg.HeaderHost)
		httpReq.RemoteAddr = req.RemoteAddr
		httpReq.ProtoMajor, httpReq.ProtoMinor = req.ProtoMajor, req.ProtoMinor
		if req.Entity != nil {
			httpReq.ContentLength = req.Entity.Length()
		}

		w := &bufferedWriter{header: make(http.Header)}
		h.ServeHTTP(w, httpReq)

		b := httpmsg.NewResponseBuilder().Status(w.status()).Entity(httpmsg.NewByteArrayEntity(w.body.Bytes()))
		for name, values := range w.header {
			for _, v := range values {
				b.Header(name, v)
			}
		}
		cb.ResponseReady(b.Build(), StatusCallbackFuncs{})
	})
}

type bufferedWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.body.Write(p)
}

// Flush is a no-op; the body is sent once the handler returns.
func (w *bufferedWriter) Flush() {}

func (w *bufferedWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
