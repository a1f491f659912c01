package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/httplistener/httpmsg"
	"github.com/BaSui01/httplistener/httpserver"
)

type captureCallback struct {
	resp   *httpmsg.Response
	status httpserver.ResponseStatusCallback
}

func (c *captureCallback) ResponseReady(resp *httpmsg.Response, status httpserver.ResponseStatusCallback) {
	c.resp = resp
	c.status = status
}

func requestContext(method, target, body string) httpserver.RequestContext {
	u, _ := url.Parse(target)
	var entity httpmsg.Entity = httpmsg.EmptyEntity{}
	if body != "" {
		entity = httpmsg.NewSizedInputStreamEntity(strings.NewReader(body), int64(len(body)))
	}
	return httpserver.RequestContext{
		Context: context.Background(),
		Request: &httpmsg.Request{
			Method:     method,
			URI:        u,
			Path:       u.Path,
			ProtoMajor: 1,
			ProtoMinor: 1,
			Headers:    httpmsg.NewHeaders("Host", "example.com", "X-In", "1"),
			Entity:     entity,
			RemoteAddr: "10.0.0.1:5000",
		},
	}
}

func TestHTTPHandler_BuffersResponse(t *testing.T) {
	var seen *http.Request
	var seenBody string
	h := httpserver.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.Header().Set("X-Out", "2")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	cb := &captureCallback{}
	h.HandleRequest(requestContext(http.MethodPost, "/items?id=7", "payload"), cb)

	require.NotNil(t, seen)
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/items", seen.URL.Path)
	assert.Equal(t, "7", seen.URL.Query().Get("id"))
	assert.Equal(t, "example.com", seen.Host)
	assert.Equal(t, "1", seen.Header.Get("X-In"))
	assert.Equal(t, "10.0.0.1:5000", seen.RemoteAddr)
	assert.Equal(t, int64(7), seen.ContentLength)
	assert.Equal(t, "payload", seenBody)

	require.NotNil(t, cb.resp)
	assert.Equal(t, http.StatusCreated, cb.resp.StatusCode)
	assert.Equal(t, []byte("created"), cb.resp.Entity.Bytes())
	v, _ := cb.resp.Headers.Get("X-Out")
	assert.Equal(t, "2", v)
	assert.NotNil(t, cb.status)
}

func TestHTTPHandler_ImplicitStatus(t *testing.T) {
	write := httpserver.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
		w.WriteHeader(http.StatusTeapot)
	}))
	cb := &captureCallback{}
	write.HandleRequest(requestContext(http.MethodGet, "/", ""), cb)
	assert.Equal(t, http.StatusOK, cb.resp.StatusCode)

	silent := httpserver.HTTPHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	cb = &captureCallback{}
	silent.HandleRequest(requestContext(http.MethodGet, "/", ""), cb)
	assert.Equal(t, http.StatusOK, cb.resp.StatusCode)
	assert.Empty(t, cb.resp.Entity.Bytes())
}

func TestStatusCallbackFuncs(t *testing.T) {
	var ok int
	var got error
	cb := httpserver.StatusCallbackFuncs{
		OnSuccess: func() { ok++ },
		OnError:   func(err error) { got = err },
	}
	cb.ResponseSendSuccessfully()
	cb.OnErrorSendingResponse(io.ErrClosedPipe)
	assert.Equal(t, 1, ok)
	assert.Equal(t, io.ErrClosedPipe, got)

	// zero value is safe
	httpserver.StatusCallbackFuncs{}.ResponseSendSuccessfully()
	httpserver.StatusCallbackFuncs{}.OnErrorSendingResponse(io.EOF)
}
