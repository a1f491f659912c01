package server

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/httplistener/httpserver"
)

// =============================================================================
// 🧭 请求处理器注册表
// =============================================================================

// Path patterns are matched segment by segment:
//
//	/orders         exact
//	/orders/{id}    {name} matches any single segment
//	/static/*       a trailing * matches the prefix itself and anything below it
//
// Among matching patterns the one with the most literal segments wins, then
// the one with fewer wildcards. Later registrations win ties.

type handlerEntry struct {
	seq      uint64
	pattern  []string
	wildcard bool
	methods  map[string]struct{}
	handler  httpserver.RequestHandler
	stopped  atomic.Bool
}

func (e *handlerEntry) acceptsMethod(method string) bool {
	if len(e.methods) == 0 {
		return true
	}
	_, ok := e.methods[method]
	return ok
}

// score ranks how specifically the entry matches segs, or -1 when it does not.
func (e *handlerEntry) score(segs []string) int {
	if e.wildcard {
		if len(segs) < len(e.pattern) {
			return -1
		}
	} else if len(segs) != len(e.pattern) {
		return -1
	}
	literal := 0
	for i, p := range e.pattern {
		if isParam(p) {
			continue
		}
		if p != segs[i] {
			return -1
		}
		literal++
	}
	// 精确匹配优先于通配
	s := literal * 4
	if !e.wildcard {
		s += 2
	}
	return s
}

// params extracts the {name} segments of segs, which must match e.
func (e *handlerEntry) params(segs []string) map[string]string {
	var out map[string]string
	for i, p := range e.pattern {
		if !isParam(p) || i >= len(segs) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[p[1:len(p)-1]] = segs[i]
	}
	return out
}

type handlerRegistry struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[uint64]*handlerEntry
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{entries: make(map[uint64]*handlerEntry)}
}

func (r *handlerRegistry) add(methods []string, path string, h httpserver.RequestHandler) *handlerEntry {
	pattern, wildcard := compilePattern(path)
	e := &handlerEntry{
		pattern:  pattern,
		wildcard: wildcard,
		handler:  h,
	}
	if len(methods) > 0 {
		e.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			e.methods[strings.ToUpper(m)] = struct{}{}
		}
	}

	r.mu.Lock()
	r.seq++
	e.seq = r.seq
	r.entries[e.seq] = e
	r.mu.Unlock()
	return e
}

func (r *handlerRegistry) remove(e *handlerEntry) {
	r.mu.Lock()
	delete(r.entries, e.seq)
	r.mu.Unlock()
}

func (r *handlerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// routeResult is the outcome of resolving a request. A zero status means
// entry should handle the request; otherwise status is the error to answer
// with and allow lists the methods of a path that did not accept the request.
type routeResult struct {
	entry  *handlerEntry
	status int
	allow  []string
}

func (r *handlerRegistry) resolve(method, path string) routeResult {
	segs := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      *handlerEntry
		bestScore = -1
		pathFound bool
		allow     = map[string]struct{}{}
	)
	for _, e := range r.entries {
		s := e.score(segs)
		if s < 0 {
			continue
		}
		pathFound = true
		if !e.acceptsMethod(method) {
			for m := range e.methods {
				allow[m] = struct{}{}
			}
			continue
		}
		if s > bestScore || (s == bestScore && e.seq > best.seq) {
			best, bestScore = e, s
		}
	}

	switch {
	case best != nil && best.stopped.Load():
		return routeResult{status: http.StatusServiceUnavailable}
	case best != nil:
		return routeResult{entry: best}
	case pathFound:
		methods := make([]string, 0, len(allow))
		for m := range allow {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		return routeResult{status: http.StatusMethodNotAllowed, allow: methods}
	default:
		return routeResult{status: http.StatusNotFound}
	}
}

// handlerManager controls a single registration.
type handlerManager struct {
	registry *handlerRegistry
	entry    *handlerEntry
	disposed atomic.Bool
}

func (m *handlerManager) Stop() {
	m.entry.stopped.Store(true)
}

func (m *handlerManager) Start() {
	m.entry.stopped.Store(false)
}

func (m *handlerManager) Dispose() {
	if m.disposed.CompareAndSwap(false, true) {
		m.registry.remove(m.entry)
	}
}

var _ httpserver.RequestHandlerManager = (*handlerManager)(nil)

// =============================================================================
// 🔌 WebSocket 处理器注册表
// =============================================================================

type wsEntry struct {
	path    string
	handler httpserver.WebSocketHandler
	stopped atomic.Bool
}

type wsRegistry struct {
	mu      sync.RWMutex
	entries map[string]*wsEntry
}

func newWSRegistry() *wsRegistry {
	return &wsRegistry{entries: make(map[string]*wsEntry)}
}

// add registers h, replacing any handler on the same path.
func (r *wsRegistry) add(h httpserver.WebSocketHandler) *wsEntry {
	e := &wsEntry{path: cleanPath(h.Path()), handler: h}
	r.mu.Lock()
	r.entries[e.path] = e
	r.mu.Unlock()
	return e
}

func (r *wsRegistry) remove(e *wsEntry) {
	r.mu.Lock()
	if r.entries[e.path] == e {
		delete(r.entries, e.path)
	}
	r.mu.Unlock()
}

func (r *wsRegistry) lookup(path string) *wsEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[cleanPath(path)]
}

type wsManager struct {
	registry *wsRegistry
	entry    *wsEntry
	disposed atomic.Bool
}

func (m *wsManager) Stop() {
	m.entry.stopped.Store(true)
}

func (m *wsManager) Start() {
	m.entry.stopped.Store(false)
}

func (m *wsManager) Dispose() {
	if m.disposed.CompareAndSwap(false, true) {
		m.registry.remove(m.entry)
	}
}

var _ httpserver.WebSocketHandlerManager = (*wsManager)(nil)

// =============================================================================
// 🔧 路径工具
// =============================================================================

func compilePattern(path string) ([]string, bool) {
	segs := splitPath(path)
	if n := len(segs); n > 0 && segs[n-1] == "*" {
		return segs[:n-1], true
	}
	return segs, false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func cleanPath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

func isParam(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}
