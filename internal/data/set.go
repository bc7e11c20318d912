package data

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"

	"github.com/TomasB/geolookup/internal/geodat"
	"github.com/TomasB/geolookup/internal/metrics"
	"github.com/TomasB/geolookup/internal/query"
	"github.com/TomasB/geolookup/internal/resolve"
)

type entry struct {
	path string
	db   Database
}

// Set is an ordered group of databases queried first match wins.
// It is safe for concurrent use.
type Set struct {
	resolver resolve.Resolver

	mu      sync.RWMutex
	entries []entry
	charset geodat.Charset
}

// NewSet returns an empty set that resolves hostnames with r. A nil r
// uses the system resolver.
func NewSet(r resolve.Resolver) *Set {
	if r == nil {
		r = resolve.NewSystem()
	}
	return &Set{resolver: r, charset: geodat.ISO88591}
}

// Open opens every path in order and appends the databases to the set.
// If any path fails, the databases opened so far are closed and the set
// is left unchanged.
func (s *Set) Open(paths ...string) error {
	cs := s.Charset()
	opened := make([]entry, 0, len(paths))
	for _, p := range paths {
		db, err := Open(p, cs)
		if err != nil {
			for _, e := range opened {
				_ = e.db.Close()
			}
			return err
		}
		slog.Info("database opened", "path", p, "kind", db.Kind().String(), "info", db.Info())
		opened = append(opened, entry{path: filepath.Clean(p), db: db})
	}

	s.mu.Lock()
	s.entries = append(s.entries, opened...)
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetDatabases(n)
	return nil
}

// Add appends an already opened database under the given path.
func (s *Set) Add(path string, db Database) {
	s.mu.Lock()
	db.SetCharset(s.charset)
	s.entries = append(s.entries, entry{path: filepath.Clean(path), db: db})
	n := len(s.entries)
	s.mu.Unlock()
	metrics.SetDatabases(n)
}

// Replace swaps the database registered under path for db and returns
// the previous one, which the caller must close. db takes over the
// charset of the database it replaces. It reports false when no
// database is registered under path.
func (s *Set) Replace(path string, db Database) (Database, bool) {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].path == path {
			old := s.entries[i].db
			db.SetCharset(old.Charset())
			s.entries[i].db = db
			return old, true
		}
	}
	return nil, false
}

// Len returns the number of databases in the set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Paths returns the paths of the databases in order.
func (s *Set) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, len(s.entries))
	for i, e := range s.entries {
		paths[i] = e.path
	}
	return paths
}

// Charset returns the charset records are returned in.
func (s *Set) Charset() geodat.Charset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.charset
}

// SetCharset changes the charset given to databases opened or added
// afterwards. Databases already in the set keep theirs.
func (s *Set) SetCharset(cs geodat.Charset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charset = cs
}

// SetEncoding is SetCharset by charset name. Only ISO-8859-1 and UTF-8
// are accepted.
func (s *Set) SetEncoding(name string) error {
	cs, err := geodat.ParseCharset(name)
	if err != nil {
		return err
	}
	s.SetCharset(cs)
	return nil
}

// Country returns the country record of the first country database that
// has one for query.
func (s *Set) Country(ctx context.Context, q string) (*geodat.CountryRecord, error) {
	var out *geodat.CountryRecord
	err := s.walk(ctx, geodat.KindCountry, q, func(db Database, addr netip.Addr) (bool, error) {
		rec, err := db.Country(addr)
		if err != nil || rec == nil {
			return false, err
		}
		out = rec
		return true, nil
	})
	return out, err
}

// City returns the city record of the first city database that has one
// for query.
func (s *Set) City(ctx context.Context, q string) (*geodat.CityRecord, error) {
	var out *geodat.CityRecord
	err := s.walk(ctx, geodat.KindCity, q, func(db Database, addr netip.Addr) (bool, error) {
		rec, err := db.City(addr)
		if err != nil || rec == nil {
			return false, err
		}
		out = rec
		return true, nil
	})
	return out, err
}

func (s *Set) hasKind(kind geodat.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.db.Kind() == kind {
			return true
		}
	}
	return false
}

// addresses turns a query into the candidate addresses. Hostnames are
// resolved here, outside the lock.
func (s *Set) addresses(ctx context.Context, q query.Query) ([]netip.Addr, error) {
	switch q := q.(type) {
	case query.NumericAddress:
		if !q.Strict() {
			return nil, nil
		}
		return []netip.Addr{q.Addr}, nil
	case query.HostnameToken:
		addrs, err := s.resolver.LookupHost(ctx, q.Host)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Debug("hostname not resolved", "host", q.Host, "error", err)
			return nil, nil
		}
		return addrs, nil
	default:
		return nil, nil
	}
}

func (s *Set) walk(ctx context.Context, kind geodat.Kind, input string, try func(Database, netip.Addr) (bool, error)) error {
	result := metrics.ResultMiss
	defer func() { metrics.ObserveLookup(kind.String(), result) }()

	q := query.Classify(input)
	if _, ok := q.(query.NoQuery); ok || !s.hasKind(kind) {
		return nil
	}
	addrs, err := s.addresses(ctx, q)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if len(addrs) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs error
	for _, e := range s.entries {
		if e.db.Kind() != kind {
			continue
		}
		for _, addr := range addrs {
			if !e.db.Supports(addr) {
				continue
			}
			ok, err := try(e.db, addr)
			if err != nil {
				slog.Warn("database lookup failed", "path", e.path, "error", err)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.path, err))
			}
			if ok {
				result = metrics.ResultHit
				return nil
			}
			break
		}
	}
	if errs != nil {
		result = metrics.ResultError
		return multierr.Errors(errs)[0]
	}
	return nil
}

// Close closes every database and empties the set.
func (s *Set) Close() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()
	metrics.SetDatabases(0)

	var err error
	for _, e := range entries {
		err = multierr.Append(err, e.db.Close())
	}
	return err
}

