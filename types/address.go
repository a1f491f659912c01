package types

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// ServerAddress is the resolved IP and port a server binds to.
// It is comparable and safe to use as a map key.
type ServerAddress struct {
	IP   netip.Addr
	Port int
}

// NewServerAddress builds an address from an already resolved IP.
func NewServerAddress(ip netip.Addr, port int) ServerAddress {
	return ServerAddress{IP: ip.Unmap(), Port: port}
}

// String returns host:port, bracketing IPv6 literals.
func (a ServerAddress) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}

// AddrPort converts the address to a netip.AddrPort.
func (a ServerAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.IP, uint16(a.Port))
}

// IsWildcard reports whether the address listens on all interfaces.
func (a ServerAddress) IsWildcard() bool {
	return a.IP.IsUnspecified()
}

// Overlaps reports whether two addresses would compete for the same port:
// equal addresses, or the same port where either side is a wildcard.
func (a ServerAddress) Overlaps(other ServerAddress) bool {
	if a.Port != other.Port {
		return false
	}
	return a.IP == other.IP || a.IsWildcard() || other.IsWildcard()
}

// ServerIdentifier names the logical owner of a server: the context (usually
// the deploying application) and the server's name within it.
type ServerIdentifier struct {
	Context string
	Name    string
}

// String renders the identifier as context/name.
func (id ServerIdentifier) String() string {
	return fmt.Sprintf("%s/%s", id.Context, id.Name)
}

// RegistryKey is the (address, identifier) pair that identifies one live server.
type RegistryKey struct {
	Address    ServerAddress
	Identifier ServerIdentifier
}

// Protocol is the scheme a server speaks.
type Protocol string

const (
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// Scheme returns the lower-case URI scheme.
func (p Protocol) Scheme() string {
	if p == ProtocolHTTPS {
		return "https"
	}
	return "http"
}
