//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/BaSui01/httplistener/types"
)

// listenTCP creates the socket by hand so SO_REUSEADDR, the buffer sizes and
// the accept backlog can be set before listen(2).
func listenTCP(_ context.Context, addr types.ServerAddress, props types.TCPServerSocketProperties) (net.Listener, error) {
	family := unix.AF_INET
	var sa unix.Sockaddr
	if addr.IP.Is6() {
		family = unix.AF_INET6
		sa = &unix.SockaddrInet6{Port: addr.Port, Addr: addr.IP.As16()}
	} else {
		sa = &unix.SockaddrInet4{Port: addr.Port, Addr: addr.IP.As4()}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := configureSocket(fd, props); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}

	backlog := props.ReceiveBacklog
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:%s", addr))
	defer f.Close()
	return net.FileListener(f)
}

func configureSocket(fd int, props types.TCPServerSocketProperties) error {
	if props.ReuseAddress {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return os.NewSyscallError("setsockopt SO_REUSEADDR", err)
		}
	}
	if props.ReceiveBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, props.ReceiveBufferSize); err != nil {
			return os.NewSyscallError("setsockopt SO_RCVBUF", err)
		}
	}
	if props.SendBufferSize > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, props.SendBufferSize); err != nil {
			return os.NewSyscallError("setsockopt SO_SNDBUF", err)
		}
	}
	return nil
}
