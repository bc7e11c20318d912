// Package geodattest writes small legacy GeoIP databases for tests.
package geodattest

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/TomasB/geolookup/internal/geodat"
	"golang.org/x/text/encoding/charmap"
)

const countryBegin = 16776960

// City is the content of one city record.
type City struct {
	Country    string
	Region     string
	City       string
	PostalCode string
	Latitude   float64
	Longitude  float64
	DMACode    int
	AreaCode   int
}

// A child is a node index (>= 0), a leaf i stored as -(i+2), or empty.
type node struct {
	child [2]int
}

const empty = -1

// Builder assembles a database image. Prefixes must not overlap.
type Builder struct {
	edition geodat.Edition
	info    string
	nodes   []node

	countries []int
	cities    []City
}

// NewCountry starts a country edition database.
func NewCountry() *Builder {
	return newBuilder(geodat.EditionCountry)
}

// NewCountryV6 starts a country v6 edition database.
func NewCountryV6() *Builder {
	return newBuilder(geodat.EditionCountryV6)
}

// NewCity starts a city database; rev1 databases store US metro codes.
func NewCity(rev1 bool) *Builder {
	if rev1 {
		return newBuilder(geodat.EditionCityRev1)
	}
	return newBuilder(geodat.EditionCityRev0)
}

// New starts a database of an arbitrary edition with no records.
func New(edition geodat.Edition) *Builder {
	return newBuilder(edition)
}

func newBuilder(edition geodat.Edition) *Builder {
	return &Builder{
		edition: edition,
		nodes:   []node{{child: [2]int{empty, empty}}},
	}
}

// Info sets the database info string.
func (b *Builder) Info(info string) *Builder {
	b.info = info
	return b
}

// AddCountry maps prefix to the country with the given two-letter code.
func (b *Builder) AddCountry(prefix string, code string) *Builder {
	id, ok := geodat.CountryIndex(code)
	if !ok {
		panic(fmt.Sprintf("geodattest: unknown country %q", code))
	}
	b.countries = append(b.countries, id)
	b.insert(prefix, len(b.countries)-1)
	return b
}

// AddCity maps prefix to a city record.
func (b *Builder) AddCity(prefix string, c City) *Builder {
	b.cities = append(b.cities, c)
	b.insert(prefix, len(b.cities)-1)
	return b
}

func (b *Builder) insert(prefix string, leaf int) {
	p := netip.MustParsePrefix(prefix).Masked()
	addr := p.Addr()
	var key []byte
	if b.edition.IsV6() {
		a := addr.As16()
		key = a[:]
	} else {
		a := addr.Unmap().As4()
		key = a[:]
	}
	bits := p.Bits()
	cur := 0
	for depth := 0; depth < bits; depth++ {
		bit := 0
		if key[depth/8]&(0x80>>(depth%8)) != 0 {
			bit = 1
		}
		if depth == bits-1 {
			b.nodes[cur].child[bit] = -(leaf + 2)
			return
		}
		next := b.nodes[cur].child[bit]
		if next < 0 {
			b.nodes = append(b.nodes, node{child: [2]int{empty, empty}})
			next = len(b.nodes) - 1
			b.nodes[cur].child[bit] = next
		}
		cur = next
	}
}

// Bytes serializes the database.
func (b *Builder) Bytes() []byte {
	var (
		out      []byte
		segments uint32
		leafVal  func(int) uint32
		missVal  uint32
		records  []byte
	)
	switch b.edition.Kind() {
	case geodat.KindCountry:
		segments = countryBegin
		missVal = countryBegin
		leafVal = func(i int) uint32 { return countryBegin + uint32(b.countries[i]) }
	default:
		segments = uint32(len(b.nodes))
		missVal = segments
		// a leading pad byte keeps the first record off the miss value
		records = []byte{0}
		offsets := make([]uint32, len(b.cities))
		for i, c := range b.cities {
			offsets[i] = uint32(len(records))
			records = append(records, b.encodeCity(c)...)
		}
		leafVal = func(i int) uint32 { return segments + offsets[i] }
	}

	for _, n := range b.nodes {
		for _, c := range n.child {
			var v uint32
			switch {
			case c == empty:
				v = missVal
			case c >= 0:
				v = uint32(c)
			default:
				v = leafVal(-c - 2)
			}
			out = append(out, byte(v), byte(v>>8), byte(v>>16))
		}
	}
	out = append(out, records...)
	if b.info != "" {
		out = append(out, 0, 0, 0)
		out = append(out, b.info...)
	}
	out = append(out, 0xff, 0xff, 0xff, byte(b.edition))
	if b.edition.Kind() != geodat.KindCountry {
		out = append(out, byte(segments), byte(segments>>8), byte(segments>>16))
	}
	return out
}

func put24(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16))
}

func (b *Builder) encodeCity(c City) []byte {
	id, ok := geodat.CountryIndex(c.Country)
	if !ok {
		panic(fmt.Sprintf("geodattest: unknown country %q", c.Country))
	}
	out := []byte{byte(id)}
	// strings are stored as ISO-8859-1
	enc := charmap.ISO8859_1.NewEncoder()
	for _, s := range []string{c.Region, c.City, c.PostalCode} {
		raw, err := enc.String(s)
		if err != nil {
			panic(fmt.Sprintf("geodattest: %q is not representable in ISO-8859-1", s))
		}
		out = append(out, raw...)
		out = append(out, 0)
	}
	out = put24(out, uint32((c.Latitude+180)*10000+0.5))
	out = put24(out, uint32((c.Longitude+180)*10000+0.5))
	if b.edition == geodat.EditionCityRev1 && c.Country == "US" {
		out = put24(out, uint32(c.DMACode*1000+c.AreaCode))
	}
	return out
}

// WriteFile writes the database into a temporary directory of t and
// returns its path.
func (b *Builder) WriteFile(t testing.TB, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write database: %v", err)
	}
	return path
}
