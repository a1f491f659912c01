package httpmsg

import (
	"net/http"
	"net/url"
	"strconv"
)

// Request is a parsed HTTP request as seen by request handlers.
type Request struct {
	Method     string
	URI        *url.URL
	Path       string
	ProtoMajor int
	ProtoMinor int
	Headers    *Headers
	Entity     Entity
	RemoteAddr string
	// Scheme is "http" or "https" depending on the accepting server.
	Scheme string
}

// IsHTTP10 reports whether the request was made with HTTP/1.0 or older.
func (r *Request) IsHTTP10() bool {
	return r.ProtoMajor < 1 || (r.ProtoMajor == 1 && r.ProtoMinor == 0)
}

// FromHTTPRequest adapts a request produced by net/http's wire parser.
func FromHTTPRequest(r *http.Request, scheme string) *Request {
	var entity Entity = EmptyEntity{}
	if r.Body != nil && r.Body != http.NoBody {
		entity = NewSizedInputStreamEntity(r.Body, r.ContentLength)
	}
	headers := FromHTTPHeader(r.Header)
	if r.Host != "" && !headers.Has(HeaderHost) {
		headers.Add(HeaderHost, r.Host)
	}
	return &Request{
		Method:     r.Method,
		URI:        r.URL,
		Path:       r.URL.Path,
		ProtoMajor: r.ProtoMajor,
		ProtoMinor: r.ProtoMinor,
		Headers:    headers,
		Entity:     entity,
		RemoteAddr: r.RemoteAddr,
		Scheme:     scheme,
	}
}

// Response is an HTTP response produced by a request handler.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Headers      *Headers
	Entity       Entity
}

// Reason returns the reason phrase, falling back to the standard text.
func (r *Response) Reason() string {
	if r.ReasonPhrase != "" {
		return r.ReasonPhrase
	}
	if text := http.StatusText(r.StatusCode); text != "" {
		return text
	}
	return "Unknown"
}

// ResponseBuilder assembles a Response.
type ResponseBuilder struct {
	resp Response
}

// NewResponseBuilder starts a 200 response with no headers and an empty body.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{resp: Response{
		StatusCode: http.StatusOK,
		Headers:    &Headers{},
		Entity:     EmptyEntity{},
	}}
}

// Status sets the status code.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.resp.StatusCode = code
	return b
}

// Reason sets a custom reason phrase.
func (b *ResponseBuilder) Reason(phrase string) *ResponseBuilder {
	b.resp.ReasonPhrase = phrase
	return b
}

// Header appends a header value.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.resp.Headers.Add(name, value)
	return b
}

// Headers replaces all headers with a copy of h.
func (b *ResponseBuilder) Headers(h *Headers) *ResponseBuilder {
	b.resp.Headers = h.Clone()
	return b
}

// Entity sets the body.
func (b *ResponseBuilder) Entity(e Entity) *ResponseBuilder {
	if e == nil {
		e = EmptyEntity{}
	}
	b.resp.Entity = e
	return b
}

// Build returns the response.
func (b *ResponseBuilder) Build() *Response {
	resp := b.resp
	return &resp
}

// ContentLength returns the declared Content-Length header, or -1.
func (r *Response) ContentLength() int64 {
	v, ok := r.Headers.Get(HeaderContentLength)
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
