package geodat

import (
	"fmt"
	"net/netip"
)

// seek walks the trie from the root, taking the right branch for set bits
// and the left branch otherwise, until a pointer at or beyond the segment
// count is reached. It returns the leaf value and the prefix length at
// which it was found.
func (db *DB) seek(addr netip.Addr) (uint32, int, error) {
	var key []byte
	if db.edition.IsV6() {
		a := addr.As16()
		key = a[:]
	} else {
		a := addr.Unmap().As4()
		key = a[:]
	}

	rl := db.recordLength
	nbits := len(key) * 8
	var offset uint32
	for depth := 0; depth < nbits; depth++ {
		node, err := db.readAt(int64(rl)*2*int64(offset), 2*rl)
		if err != nil {
			return 0, 0, err
		}
		half := node[:rl]
		if key[depth/8]&(0x80>>(depth%8)) != 0 {
			half = node[rl:]
		}
		var x uint32
		for i := rl - 1; i >= 0; i-- {
			x = x<<8 | uint32(half[i])
		}
		if x >= db.segments {
			return x, depth + 1, nil
		}
		offset = x
	}
	return 0, 0, fmt.Errorf("no leaf for %s: %w", addr, ErrCorrupt)
}

// Network returns the block addr falls in, as found by the trie walk.
func (db *DB) Network(addr netip.Addr) (netip.Prefix, error) {
	if !db.Supports(addr) {
		return netip.Prefix{}, nil
	}
	_, bits, err := db.seek(addr)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !db.edition.IsV6() {
		addr = addr.Unmap()
	}
	return addr.Prefix(bits)
}
