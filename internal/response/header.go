package response

import (
	"bytes"
	"net/http"
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/BaSui01/httplistener/httpmsg"
)

// DecideConnection picks the Connection header value for resp. An explicit
// Connection header on the response wins verbatim. Otherwise the connection
// persists only when persistent connections are enabled and the request's
// HTTP version allows it: HTTP/1.1 unless the client asked to close, HTTP/1.0
// only when the client asked for keep-alive.
func DecideConnection(req *httpmsg.Request, resp *httpmsg.Response, usePersistent bool) (value string, explicit bool) {
	if v, ok := resp.Headers.Get(httpmsg.HeaderConnection); ok {
		return v, true
	}
	if !usePersistent {
		return httpmsg.Close, false
	}
	if req == nil {
		return httpmsg.KeepAlive, false
	}
	if req.IsHTTP10() {
		if req.Headers.HasToken(httpmsg.HeaderConnection, httpmsg.KeepAlive) {
			return httpmsg.KeepAlive, false
		}
		return httpmsg.Close, false
	}
	if req.Headers.HasToken(httpmsg.HeaderConnection, httpmsg.Close) {
		return httpmsg.Close, false
	}
	return httpmsg.KeepAlive, false
}

// isKeepAlive interprets a decided Connection value.
func isKeepAlive(value string) bool {
	h := httpmsg.NewHeaders(httpmsg.HeaderConnection, value)
	return !h.HasToken(httpmsg.HeaderConnection, httpmsg.Close)
}

// bodyAllowed reports whether a body may follow the header block.
func bodyAllowed(req *httpmsg.Request, status int) bool {
	if req != nil && req.Method == http.MethodHead {
		return false
	}
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

// buildHeaderBlock serialises the status line and headers. Fields with
// invalid names or values are dropped; skipped receives their names.
func buildHeaderBlock(status int, reason string, headers *httpmsg.Headers, skipped func(name string)) []byte {
	var b bytes.Buffer
	b.Grow(64 + headers.Len()*32)
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(status))
	b.WriteByte(' ')
	b.WriteString(reason)
	b.WriteString("\r\n")
	headers.Each(func(name, value string) {
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			if skipped != nil {
				skipped(name)
			}
			return
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	})
	b.WriteString("\r\n")
	return b.Bytes()
}
