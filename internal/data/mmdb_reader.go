package data

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/TomasB/geolookup/internal/geodat"
)

// MmdbReader implements Database using a MaxMind MMDB file.
type MmdbReader struct {
	db      *geoip2.Reader
	kind    geodat.Kind
	charset atomic.Uint32
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, &geodat.OpenError{Path: path, Err: fmt.Errorf("failed to open MMDB file: %w", err)}
	}
	return newMmdbReader(db), nil
}

// NewMmdbReaderFromBytes opens an MMDB image held in memory.
func NewMmdbReaderFromBytes(b []byte) (*MmdbReader, error) {
	db, err := geoip2.FromBytes(b)
	if err != nil {
		return nil, &geodat.OpenError{Err: fmt.Errorf("failed to open MMDB: %w", err)}
	}
	return newMmdbReader(db), nil
}

func newMmdbReader(db *geoip2.Reader) *MmdbReader {
	r := &MmdbReader{db: db, kind: mmdbKind(db.Metadata().DatabaseType)}
	r.charset.Store(uint32(geodat.ISO88591))
	return r
}

func mmdbKind(databaseType string) geodat.Kind {
	switch {
	case strings.Contains(databaseType, "City"), strings.Contains(databaseType, "Enterprise"):
		return geodat.KindCity
	case strings.Contains(databaseType, "Country"):
		return geodat.KindCountry
	default:
		return geodat.KindOther
	}
}

// Kind reports the record variant derived from the database type.
func (r *MmdbReader) Kind() geodat.Kind { return r.kind }

// Supports reports whether addr can be looked up.
func (r *MmdbReader) Supports(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	return r.db.Metadata().IPVersion == 6 || addr.Unmap().Is4()
}

// Charset returns the charset records are returned in.
func (r *MmdbReader) Charset() geodat.Charset { return geodat.Charset(r.charset.Load()) }

// SetCharset changes the charset records are returned in. MMDB strings
// are UTF-8 on disk.
func (r *MmdbReader) SetCharset(cs geodat.Charset) { r.charset.Store(uint32(cs)) }

// Info returns the database type and build date.
func (r *MmdbReader) Info() string {
	md := r.db.Metadata()
	built := time.Unix(int64(md.BuildEpoch), 0).UTC().Format("20060102")
	return fmt.Sprintf("%s %s", md.DatabaseType, built)
}

func toNetIP(addr netip.Addr) net.IP {
	return net.IP(addr.Unmap().AsSlice())
}

// countryFields fills code3 and name from the legacy tables when the MMDB
// has no English name.
func countryFields(isoCode string, names map[string]string) (code, code3, name *string) {
	if isoCode == "" {
		return nil, nil, nil
	}
	code = &isoCode
	if c3, ok := geodat.CountryCode3(isoCode); ok {
		code3 = &c3
	}
	if en := names["en"]; en != "" {
		name = &en
	} else if n, ok := geodat.CountryName(isoCode); ok {
		name = &n
	}
	return code, code3, name
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Country returns the country record for addr.
func (r *MmdbReader) Country(addr netip.Addr) (*geodat.CountryRecord, error) {
	if r.kind != geodat.KindCountry || !r.Supports(addr) {
		return nil, nil
	}
	record, err := r.db.Country(toNetIP(addr))
	if err != nil {
		return nil, fmt.Errorf("country lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" {
		return nil, nil
	}
	out := &geodat.CountryRecord{Charset: geodat.UTF8}
	out.Code, out.Code3, out.Name = countryFields(record.Country.IsoCode, record.Country.Names)
	return out.In(r.Charset()), nil
}

// City returns the city record for addr.
func (r *MmdbReader) City(addr netip.Addr) (*geodat.CityRecord, error) {
	if r.kind != geodat.KindCity || !r.Supports(addr) {
		return nil, nil
	}
	record, err := r.db.City(toNetIP(addr))
	if err != nil {
		return nil, fmt.Errorf("city lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" && len(record.City.Names) == 0 {
		return nil, nil
	}
	out := &geodat.CityRecord{
		City:       optionalString(record.City.Names["en"]),
		PostalCode: optionalString(record.Postal.Code),
		Latitude:   record.Location.Latitude,
		Longitude:  record.Location.Longitude,
		DMACode:    int(record.Location.MetroCode),
		Charset:    geodat.UTF8,
	}
	out.Code, out.Code3, out.Name = countryFields(record.Country.IsoCode, record.Country.Names)
	if len(record.Subdivisions) > 0 {
		out.Region = optionalString(record.Subdivisions[0].IsoCode)
	}
	return out.In(r.Charset()), nil
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return r.db.Close()
}
