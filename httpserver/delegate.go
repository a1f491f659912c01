package httpserver

import "github.com/BaSui01/httplistener/types"

// Delegate forwards every HTTPServer operation to a wrapped server and adds
// no state of its own. Decorators embed *Delegate and override only the
// methods they care about.
type Delegate struct {
	delegate HTTPServer
}

// NewDelegate wraps server.
func NewDelegate(server HTTPServer) *Delegate {
	return &Delegate{delegate: server}
}

// Delegate returns the immediately wrapped server.
func (d *Delegate) Delegate() HTTPServer {
	return d.delegate
}

func (d *Delegate) Start() (HTTPServer, error) {
	return d.delegate.Start()
}

func (d *Delegate) Stop() HTTPServer {
	return d.delegate.Stop()
}

func (d *Delegate) Dispose() {
	d.delegate.Dispose()
}

func (d *Delegate) ServerAddress() types.ServerAddress {
	return d.delegate.ServerAddress()
}

func (d *Delegate) Protocol() types.Protocol {
	return d.delegate.Protocol()
}

func (d *Delegate) IsStopping() bool {
	return d.delegate.IsStopping()
}

func (d *Delegate) IsStopped() bool {
	return d.delegate.IsStopped()
}

func (d *Delegate) AddRequestHandler(methods []string, path string, handler RequestHandler) RequestHandlerManager {
	return d.delegate.AddRequestHandler(methods, path, handler)
}

func (d *Delegate) AddWebSocketHandler(handler WebSocketHandler) WebSocketHandlerManager {
	return d.delegate.AddWebSocketHandler(handler)
}

func (d *Delegate) EnableTLS(factory TLSContextFactory) error {
	return d.delegate.EnableTLS(factory)
}

func (d *Delegate) DisableTLS() {
	d.delegate.DisableTLS()
}

var _ HTTPServer = (*Delegate)(nil)
