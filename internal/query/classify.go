// Package query classifies lookup input as a literal IPv4 address or a
// hostname that needs resolving first.
package query

import "net/netip"

// Query is one of NoQuery, NumericAddress or HostnameToken.
type Query interface {
	isQuery()
}

// NoQuery is empty input. It never reaches a database.
type NoQuery struct{}

// NumericAddress is a dotted quad. Suffix holds the single trailing
// non-digit character the scan tolerates, or 0.
type NumericAddress struct {
	Addr   netip.Addr
	Suffix byte
}

// Strict reports whether the input was exactly a dotted quad.
func (n NumericAddress) Strict() bool { return n.Suffix == 0 }

// HostnameToken is input that must be resolved before lookup.
type HostnameToken struct {
	Host string
}

func (NoQuery) isQuery()        {}
func (NumericAddress) isQuery() {}
func (HostnameToken) isQuery()  {}

// Classify decides how input is looked up. Four decimal octets separated
// by dots are numeric, and so are they when followed by exactly one
// non-digit character; anything else is a hostname.
func Classify(input string) Query {
	if input == "" {
		return NoQuery{}
	}
	var (
		octets [4]byte
		pos    int
	)
	for i := range octets {
		if i > 0 {
			if pos >= len(input) || input[pos] != '.' {
				return HostnameToken{Host: input}
			}
			pos++
		}
		v, n := scanOctet(input[pos:])
		if n == 0 {
			return HostnameToken{Host: input}
		}
		octets[i] = byte(v)
		pos += n
	}

	addr := netip.AddrFrom4(octets)
	switch len(input) - pos {
	case 0:
		return NumericAddress{Addr: addr}
	case 1:
		// a trailing digit would have been consumed by the last octet
		return NumericAddress{Addr: addr, Suffix: input[pos]}
	default:
		return HostnameToken{Host: input}
	}
}

// scanOctet reads a run of decimal digits with a value of at most 255.
// It returns the number of bytes consumed, 0 when there is no valid octet.
func scanOctet(s string) (int, int) {
	v, n := 0, 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		v = v*10 + int(s[n]-'0')
		if v > 255 {
			return 0, 0
		}
		n++
	}
	return v, n
}
