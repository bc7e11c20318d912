package resolve

import (
	"context"
	"net/netip"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cached remembers successful resolutions for a while and collapses
// concurrent lookups of the same host.
type Cached struct {
	next  Resolver
	cache *expirable.LRU[string, []netip.Addr]
	group singleflight.Group
}

// NewCached wraps next with an LRU cache of size entries living ttl.
func NewCached(next Resolver, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, []netip.Addr](size, nil, ttl),
	}
}

// LookupHost returns cached addresses or resolves host through next.
// Callers asking for the same host share one resolution, which runs
// detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx is done.
func (c *Cached) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	if addrs, ok := c.cache.Get(host); ok {
		return addrs, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(host, func() (any, error) {
		addrs, err := c.next.LookupHost(shared, host)
		if err != nil {
			return nil, err
		}
		c.cache.Add(host, addrs)
		return addrs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]netip.Addr), nil
	}
}

// Len returns the number of cached hosts.
func (c *Cached) Len() int {
	return c.cache.Len()
}
