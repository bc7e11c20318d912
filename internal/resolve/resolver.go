// Package resolve turns hostnames into addresses for lookups.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrNotFound is returned when a host has no usable address.
var ErrNotFound = errors.New("host not found")

const maxHostLength = 253

// Resolver resolves a hostname to its addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]netip.Addr, error)
}

func checkHost(host string) error {
	if host == "" || len(host) > maxHostLength {
		return fmt.Errorf("%q: %w", truncate(host), ErrNotFound)
	}
	return nil
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}

// literal returns the address when host is an IP literal.
func literal(host string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// System resolves through the operating system resolver.
type System struct {
	resolver *net.Resolver
}

// NewSystem returns a resolver backed by net.DefaultResolver.
func NewSystem() *System {
	return &System{resolver: net.DefaultResolver}
}

// LookupHost returns the addresses of host, IPv4 first.
func (s *System) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	if err := checkHost(host); err != nil {
		return nil, err
	}
	if addr, ok := literal(host); ok {
		return []netip.Addr{addr}, nil
	}
	addrs, err := s.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("%s: %w", host, ErrNotFound)
		}
		return nil, fmt.Errorf("resolving %s: %w", host, err)
	}
	return order(addrs), nil
}

// order unmaps addresses and puts IPv4 ahead of IPv6, keeping the
// resolver's order within each family.
func order(addrs []netip.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			out = append(out, a)
		}
	}
	for _, a := range addrs {
		if a = a.Unmap(); !a.Is4() {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
