package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startDNS serves A/AAAA answers for the given fqdn -> addresses map.
func startDNS(t *testing.T, records map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		ips, ok := records[q.Name]
		if !ok {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
		for _, ip := range ips {
			addr := netip.MustParseAddr(ip)
			var rr dns.RR
			switch {
			case addr.Is4() && q.Qtype == dns.TypeA:
				rr, _ = dns.NewRR(fmt.Sprintf("%s 60 IN A %s", q.Name, ip))
			case addr.Is6() && q.Qtype == dns.TypeAAAA:
				rr, _ = dns.NewRR(fmt.Sprintf("%s 60 IN AAAA %s", q.Name, ip))
			}
			if rr != nil {
				m.Answer = append(m.Answer, rr)
			}
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNS_LookupHost(t *testing.T) {
	server := startDNS(t, map[string][]string{
		"m.root-servers.net.": {"202.12.27.33", "2001:dc3::35"},
		"a.root-servers.net.": {"198.41.0.4"},
	})
	r := NewDNS(server, 2*time.Second)
	ctx := context.Background()

	addrs, err := r.LookupHost(ctx, "m.root-servers.net")
	require.NoError(t, err)
	require.Equal(t, []netip.Addr{
		netip.MustParseAddr("202.12.27.33"),
		netip.MustParseAddr("2001:dc3::35"),
	}, addrs)

	addrs, err = r.LookupHost(ctx, "a.root-servers.net")
	require.NoError(t, err)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("198.41.0.4")}, addrs)

	_, err = r.LookupHost(ctx, "this.is.example")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDNS_DefaultPort(t *testing.T) {
	r := NewDNS("127.0.0.1", time.Second)
	require.Equal(t, "127.0.0.1:53", r.server)
}

func TestLookupHost_WithoutIO(t *testing.T) {
	resolvers := map[string]Resolver{
		"system": NewSystem(),
		// nothing listens here; literals and invalid hosts must not query it
		"dns": NewDNS("127.0.0.1:1", 100*time.Millisecond),
	}
	for name, r := range resolvers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			addrs, err := r.LookupHost(ctx, "2001:218::1")
			require.NoError(t, err)
			require.Equal(t, []netip.Addr{netip.MustParseAddr("2001:218::1")}, addrs)

			_, err = r.LookupHost(ctx, strings.Repeat("a", 100_000))
			require.ErrorIs(t, err, ErrNotFound)

			_, err = r.LookupHost(ctx, "")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOrder(t *testing.T) {
	in := []netip.Addr{
		netip.MustParseAddr("2001:db8::1"),
		netip.MustParseAddr("::ffff:192.0.2.1"),
		netip.MustParseAddr("192.0.2.2"),
	}
	require.Equal(t, []netip.Addr{
		netip.MustParseAddr("192.0.2.1"),
		netip.MustParseAddr("192.0.2.2"),
		netip.MustParseAddr("2001:db8::1"),
	}, order(in))
	require.Nil(t, order(nil))
}

type countingResolver struct {
	calls atomic.Int32
	addrs []netip.Addr
	err   error
}

func (c *countingResolver) LookupHost(context.Context, string) ([]netip.Addr, error) {
	c.calls.Add(1)
	return c.addrs, c.err
}

func TestCached(t *testing.T) {
	next := &countingResolver{addrs: []netip.Addr{netip.MustParseAddr("202.12.27.33")}}
	c := NewCached(next, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		addrs, err := c.LookupHost(ctx, "m.root-servers.net")
		require.NoError(t, err)
		require.Equal(t, next.addrs, addrs)
	}
	require.EqualValues(t, 1, next.calls.Load())
	require.Equal(t, 1, c.Len())
}

func TestCached_ErrorsNotCached(t *testing.T) {
	next := &countingResolver{err: fmt.Errorf("x: %w", ErrNotFound)}
	c := NewCached(next, 16, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := c.LookupHost(context.Background(), "this.is.example")
		require.True(t, errors.Is(err, ErrNotFound))
	}
	require.EqualValues(t, 2, next.calls.Load())
	require.Zero(t, c.Len())
}

type blockingResolver struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	addrs   []netip.Addr
}

func (b *blockingResolver) LookupHost(ctx context.Context, _ string) ([]netip.Addr, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return b.addrs, nil
	}
}

func TestCached_CancelledCallerDoesNotFailOthers(t *testing.T) {
	next := &blockingResolver{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		addrs:   []netip.Addr{netip.MustParseAddr("192.0.2.7")},
	}
	c := NewCached(next, 16, time.Minute)

	type result struct {
		addrs []netip.Addr
		err   error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		addrs, err := c.LookupHost(ctx, "slow.example")
		first <- result{addrs, err}
	}()
	<-next.entered

	go func() {
		addrs, err := c.LookupHost(context.Background(), "slow.example")
		second <- result{addrs, err}
	}()
	// let the second caller join the in-flight resolution
	time.Sleep(50 * time.Millisecond)

	cancel()
	r := <-first
	require.ErrorIs(t, r.err, context.Canceled)

	close(next.release)
	r = <-second
	require.NoError(t, r.err)
	require.Equal(t, next.addrs, r.addrs)
	require.EqualValues(t, 1, next.calls.Load())
	require.Equal(t, 1, c.Len())
}
