package geodat

import (
	"bytes"
	"fmt"
)

const fullRecordLength = 50

// CountryRecord is the result of a country lookup. Nil fields are absent
// in the source data.
type CountryRecord struct {
	Code  *string `json:"code,omitempty"`
	Code3 *string `json:"code3,omitempty"`
	Name  *string `json:"name,omitempty"`

	Charset Charset `json:"-"`
}

// CityRecord is the result of a city lookup. String fields are nil when
// absent; numeric fields default to zero.
type CityRecord struct {
	Code       *string `json:"code,omitempty"`
	Code3      *string `json:"code3,omitempty"`
	Name       *string `json:"name,omitempty"`
	Region     *string `json:"region,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DMACode    int     `json:"dma_code"`
	AreaCode   int     `json:"area_code"`

	Charset Charset `json:"-"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func reencode(p *string, from, to Charset) *string {
	if p == nil {
		return nil
	}
	s := transcode(*p, from, to)
	return &s
}

func putString(m map[string]any, key string, p *string) {
	if p != nil {
		m[key] = *p
	}
}

// NewCountryRecord builds a record from the country tables.
func NewCountryRecord(id int, cs Charset) (*CountryRecord, error) {
	if id < 0 || id >= NumCountries {
		return nil, fmt.Errorf("country id %d: %w", id, ErrCorrupt)
	}
	return &CountryRecord{
		Code:    optional(countryCodes[id]),
		Code3:   optional(countryCodes3[id]),
		Name:    optional(cs.decodeRaw([]byte(countryNames[id]))),
		Charset: cs,
	}, nil
}

// In returns a copy of r with its strings encoded in cs.
func (r *CountryRecord) In(cs Charset) *CountryRecord {
	if r == nil {
		return nil
	}
	return &CountryRecord{
		Code:    reencode(r.Code, r.Charset, cs),
		Code3:   reencode(r.Code3, r.Charset, cs),
		Name:    reencode(r.Name, r.Charset, cs),
		Charset: cs,
	}
}

// Fields returns the present fields keyed by name.
func (r *CountryRecord) Fields() map[string]any {
	m := make(map[string]any, 3)
	putString(m, "code", r.Code)
	putString(m, "code3", r.Code3)
	putString(m, "name", r.Name)
	return m
}

// In returns a copy of r with its strings encoded in cs.
func (r *CityRecord) In(cs Charset) *CityRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Code = reencode(r.Code, r.Charset, cs)
	out.Code3 = reencode(r.Code3, r.Charset, cs)
	out.Name = reencode(r.Name, r.Charset, cs)
	out.Region = reencode(r.Region, r.Charset, cs)
	out.City = reencode(r.City, r.Charset, cs)
	out.PostalCode = reencode(r.PostalCode, r.Charset, cs)
	out.Charset = cs
	return &out
}

// Fields returns the present fields keyed by name. Numeric fields are
// always included.
func (r *CityRecord) Fields() map[string]any {
	m := make(map[string]any, 10)
	putString(m, "code", r.Code)
	putString(m, "code3", r.Code3)
	putString(m, "name", r.Name)
	putString(m, "region", r.Region)
	putString(m, "city", r.City)
	putString(m, "postal_code", r.PostalCode)
	m["latitude"] = r.Latitude
	m["longitude"] = r.Longitude
	m["dma_code"] = r.DMACode
	m["area_code"] = r.AreaCode
	return m
}

func le24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// decodeCity parses a city record starting at buf[0].
func decodeCity(buf []byte, edition Edition, cs Charset) (*CityRecord, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty city record: %w", ErrCorrupt)
	}
	rec, err := NewCountryRecord(int(buf[0]), cs)
	if err != nil {
		return nil, err
	}
	out := &CityRecord{
		Code:    rec.Code,
		Code3:   rec.Code3,
		Name:    rec.Name,
		Charset: cs,
	}

	rest := buf[1:]
	var fields [3]*string
	for i := range fields {
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return nil, fmt.Errorf("unterminated city record string: %w", ErrCorrupt)
		}
		if n > 0 {
			fields[i] = optional(cs.decodeRaw(rest[:n]))
		}
		rest = rest[n+1:]
	}
	out.Region, out.City, out.PostalCode = fields[0], fields[1], fields[2]

	if len(rest) < 6 {
		return nil, fmt.Errorf("truncated city coordinates: %w", ErrCorrupt)
	}
	out.Latitude = float64(le24(rest[0:3]))/10000 - 180
	out.Longitude = float64(le24(rest[3:6]))/10000 - 180
	rest = rest[6:]

	if edition.hasMetroCode() && out.Code != nil && *out.Code == "US" {
		if len(rest) < 3 {
			return nil, fmt.Errorf("truncated metro code: %w", ErrCorrupt)
		}
		combo := int(le24(rest[0:3]))
		out.DMACode = combo / 1000
		out.AreaCode = combo % 1000
	}
	return out, nil
}
