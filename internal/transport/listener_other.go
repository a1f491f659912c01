//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"context"
	"net"

	"github.com/BaSui01/httplistener/types"
)

// listenTCP falls back to the runtime listener; the backlog and buffer
// sizes stay at the platform defaults.
func listenTCP(ctx context.Context, addr types.ServerAddress, _ types.TCPServerSocketProperties) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: -1}
	return lc.Listen(ctx, "tcp", addr.String())
}
