package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/BaSui01/httplistener/types"
)

// Listen binds addr with the given socket properties. Accepted connections
// get the per-connection options applied by ApplyConnOptions.
func Listen(ctx context.Context, addr types.ServerAddress, props types.TCPServerSocketProperties) (net.Listener, error) {
	ln, err := listenTCP(ctx, addr, props)
	if err != nil {
		return nil, &IOError{Op: "listen " + addr.String(), Err: err}
	}
	if props.ServerTimeout > 0 {
		return &deadlineListener{Listener: ln, timeout: props.ServerTimeout}, nil
	}
	return ln, nil
}

// ApplyConnOptions sets the per-connection TCP options on an accepted
// connection. Non-TCP connections are left untouched.
func ApplyConnOptions(nc net.Conn, props types.TCPServerSocketProperties) error {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return nil
	}
	var errs []error
	errs = append(errs, tc.SetNoDelay(props.SendTCPNoDelay))
	errs = append(errs, tc.SetKeepAlive(props.KeepAlive))
	if props.Linger != nil {
		errs = append(errs, tc.SetLinger(*props.Linger))
	}
	if props.SendBufferSize > 0 {
		errs = append(errs, tc.SetWriteBuffer(props.SendBufferSize))
	}
	if props.ReceiveBufferSize > 0 {
		errs = append(errs, tc.SetReadBuffer(props.ReceiveBufferSize))
	}
	return errors.Join(errs...)
}

// deadlineListener bounds each Accept by the server timeout. A timed out
// Accept returns a net.Error with Timeout() true; callers retry.
type deadlineListener struct {
	net.Listener
	timeout time.Duration
}

func (l *deadlineListener) Accept() (net.Conn, error) {
	if dl, ok := l.Listener.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Now().Add(l.timeout))
	}
	return l.Listener.Accept()
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
