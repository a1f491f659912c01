package httpmsg

import (
	"net/http"
	"strings"
)

// Common header names.
const (
	HeaderConnection       = "Connection"
	HeaderContentLength    = "Content-Length"
	HeaderTransferEncoding = "Transfer-Encoding"
	HeaderContentType      = "Content-Type"
	HeaderHost             = "Host"
)

// Connection header tokens.
const (
	KeepAlive = "keep-alive"
	Close     = "close"
	Chunked   = "chunked"
)

type headerField struct {
	name  string
	value string
}

// Headers is an ordered multimap of header fields. Lookups are
// case-insensitive, the original spelling of each name is kept, and repeated
// names keep their insertion order. The zero value is ready to use.
type Headers struct {
	fields []headerField
}

// NewHeaders builds headers from name/value pairs. A trailing odd name is ignored.
func NewHeaders(kv ...string) *Headers {
	h := &Headers{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}

// FromHTTPHeader copies a net/http header map. Values of one name stay in
// order; order across names follows the canonical key sort of the source.
func FromHTTPHeader(src http.Header) *Headers {
	h := &Headers{}
	for name, values := range src {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	return h
}

// Add appends a value, keeping any existing values for name.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Set replaces every value of name with value. The replacement takes the
// position of the first existing occurrence, or is appended.
func (h *Headers) Set(name, value string) {
	idx := -1
	kept := h.fields[:0]
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			if idx < 0 {
				idx = len(kept)
				kept = append(kept, headerField{name: f.name, value: value})
			}
			continue
		}
		kept = append(kept, f)
	}
	h.fields = kept
	if idx < 0 {
		h.Add(name, value)
	}
}

// Get returns the first value of name.
func (h *Headers) Get(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value, true
		}
	}
	return "", false
}

// Values returns every value of name in insertion order.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Del removes every value of name.
func (h *Headers) Del(name string) {
	kept := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.name, name) {
			kept = append(kept, f)
		}
	}
	h.fields = kept
}

// Len returns the number of fields, counting repeats.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Each calls fn for every field in order.
func (h *Headers) Each(fn func(name, value string)) {
	if h == nil {
		return
	}
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	if h == nil {
		return &Headers{}
	}
	out := &Headers{fields: make([]headerField, len(h.fields))}
	copy(out.fields, h.fields)
	return out
}

// HasToken reports whether any comma separated value of name contains token,
// compared case-insensitively (e.g. "Connection: keep-alive, Upgrade").
func (h *Headers) HasToken(name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// HTTPHeader converts to a net/http header map.
func (h *Headers) HTTPHeader() http.Header {
	out := make(http.Header, h.Len())
	h.Each(func(name, value string) {
		out.Add(name, value)
	})
	return out
}
