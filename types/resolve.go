package types

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// ResolveServerAddress turns a host name (or literal) and port into a
// ServerAddress. An empty host or "0.0.0.0" binds to all interfaces;
// "localhost" style names resolve to their first IPv4 address when one exists.
func ResolveServerAddress(ctx context.Context, r Resolver, host string, port int) (ServerAddress, error) {
	if port < 0 || port > 65535 {
		return ServerAddress{}, fmt.Errorf("invalid port %d", port)
	}
	if host == "" {
		return NewServerAddress(netip.IPv4Unspecified(), port), nil
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return NewServerAddress(ip, port), nil
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return ServerAddress{}, err
	}
	if len(ips) == 0 {
		return ServerAddress{}, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			return NewServerAddress(ip, port), nil
		}
	}
	return NewServerAddress(ips[0], port), nil
}
