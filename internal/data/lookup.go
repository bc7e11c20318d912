package data

import (
	"context"
	"net/netip"

	"github.com/TomasB/geolookup/internal/geodat"
)

// Lookup answers country and city queries for an address or hostname.
// A nil record with a nil error is a miss.
type Lookup interface {
	Country(ctx context.Context, query string) (*geodat.CountryRecord, error)
	City(ctx context.Context, query string) (*geodat.CityRecord, error)
}

// Database is one opened geolocation database.
type Database interface {
	// Kind reports which record variant the database produces.
	Kind() geodat.Kind

	// Supports reports whether addr is of a family the database indexes.
	Supports(addr netip.Addr) bool

	// Country returns the country record for addr, or nil when addr is
	// in no block or the database is not a country database.
	Country(addr netip.Addr) (*geodat.CountryRecord, error)

	// City returns the city record for addr, or nil when addr is in no
	// block or the database is not a city database.
	City(addr netip.Addr) (*geodat.CityRecord, error)

	Charset() geodat.Charset
	SetCharset(cs geodat.Charset)

	// Info describes the database build.
	Info() string

	// Close releases any resources held by the database.
	Close() error
}

var (
	_ Database = (*geodat.DB)(nil)
	_ Database = (*MmdbReader)(nil)
	_ Lookup   = (*Set)(nil)
)
