package data

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TomasB/geolookup/internal/geodat"
	"github.com/TomasB/geolookup/internal/geodat/geodattest"
	"github.com/TomasB/geolookup/internal/resolve"
)

type fakeResolver struct {
	calls atomic.Int32
	hosts map[string][]netip.Addr
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]netip.Addr, error) {
	f.calls.Add(1)
	if addrs, ok := f.hosts[host]; ok {
		return addrs, nil
	}
	return nil, resolve.ErrNotFound
}

// failingDB is a country database whose lookups always fail.
type failingDB struct {
	closed bool
}

var errBroken = errors.New("broken")

func (*failingDB) Kind() geodat.Kind                                 { return geodat.KindCountry }
func (*failingDB) Supports(netip.Addr) bool                          { return true }
func (*failingDB) Country(netip.Addr) (*geodat.CountryRecord, error) { return nil, errBroken }
func (*failingDB) City(netip.Addr) (*geodat.CityRecord, error)       { return nil, nil }
func (*failingDB) Charset() geodat.Charset                           { return geodat.ISO88591 }
func (*failingDB) SetCharset(geodat.Charset)                         {}
func (*failingDB) Info() string                                      { return "failing" }
func (f *failingDB) Close() error                                    { f.closed = true; return nil }

func newTestSet(t *testing.T, paths ...string) (*Set, *fakeResolver) {
	t.Helper()
	r := &fakeResolver{hosts: map[string][]netip.Addr{
		"m.root-servers.net": {netip.MustParseAddr("202.12.27.33"), netip.MustParseAddr("2001:dc3::35")},
		"a.root-servers.net": {netip.MustParseAddr("198.41.0.4")},
	}}
	s := NewSet(r)
	require.NoError(t, s.Open(paths...))
	t.Cleanup(func() { _ = s.Close() })
	return s, r
}

func countryDB(t *testing.T) string {
	return geodattest.NewCountry().
		AddCountry("202.12.27.0/24", "JP").
		AddCountry("198.41.0.0/24", "US").
		WriteFile(t, "GeoIP.dat")
}

func cityDB(t *testing.T) string {
	return geodattest.NewCity(true).
		AddCity("198.41.0.0/24", geodattest.City{
			Country: "US", Region: "VA", City: "Sterling", PostalCode: "20166",
			Latitude: 39.0061, Longitude: -77.4288, DMACode: 511, AreaCode: 703,
		}).
		AddCity("194.1.2.0/24", geodattest.City{
			Country: "CH", Region: "25", City: "Zürich",
			Latitude: 47.3667, Longitude: 8.55,
		}).
		WriteFile(t, "GeoLiteCity.dat")
}

func TestSet_Country(t *testing.T) {
	s, _ := newTestSet(t, cityDB(t), countryDB(t))
	ctx := context.Background()

	rec, err := s.Country(ctx, "202.12.27.33")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "JP", *rec.Code)
	require.Equal(t, "JPN", *rec.Code3)
	require.Equal(t, "Japan", *rec.Name)

	rec, err = s.Country(ctx, "m.root-servers.net")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "JP", *rec.Code)

	rec, err = s.Country(ctx, "127.0.0.1")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestSet_City(t *testing.T) {
	s, _ := newTestSet(t, countryDB(t), cityDB(t))

	rec, err := s.City(context.Background(), "a.root-servers.net")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "US", *rec.Code)
	require.Equal(t, "Sterling", *rec.City)
	require.Equal(t, 511, rec.DMACode)
	require.Equal(t, 703, rec.AreaCode)

	rec, err = s.City(context.Background(), "202.12.27.33")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestSet_FirstMatchWins(t *testing.T) {
	first := geodattest.NewCountry().AddCountry("202.12.27.0/24", "JP").WriteFile(t, "first.dat")
	second := geodattest.NewCountry().
		AddCountry("202.12.27.0/24", "AU").
		AddCountry("198.41.0.0/24", "US").
		WriteFile(t, "second.dat")
	s, _ := newTestSet(t, first, second)
	ctx := context.Background()

	rec, err := s.Country(ctx, "202.12.27.33")
	require.NoError(t, err)
	require.Equal(t, "JP", *rec.Code)

	rec, err = s.Country(ctx, "198.41.0.4")
	require.NoError(t, err)
	require.Equal(t, "US", *rec.Code)
}

func TestSet_NoResolutionWithoutMatchingKind(t *testing.T) {
	s, r := newTestSet(t, countryDB(t))

	rec, err := s.City(context.Background(), "a.root-servers.net")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Zero(t, r.calls.Load())
}

func TestSet_QueriesThatMiss(t *testing.T) {
	s, r := newTestSet(t, countryDB(t))

	for _, q := range []string{"", "202.12.27.33x", "this.is.example", "::1"} {
		t.Run(q, func(t *testing.T) {
			rec, err := s.Country(context.Background(), q)
			require.NoError(t, err)
			require.Nil(t, rec)
		})
	}
	// only the two hostnames reach the resolver
	require.EqualValues(t, 2, r.calls.Load())
}

func TestSet_DatabaseErrors(t *testing.T) {
	s, _ := newTestSet(t)
	broken := &failingDB{}
	s.Add("broken.dat", broken)

	_, err := s.Country(context.Background(), "202.12.27.33")
	require.ErrorIs(t, err, errBroken)

	require.NoError(t, s.Open(countryDB(t)))
	rec, err := s.Country(context.Background(), "202.12.27.33")
	require.NoError(t, err)
	require.Equal(t, "JP", *rec.Code)

	require.NoError(t, s.Close())
	require.True(t, broken.closed)
	require.Zero(t, s.Len())
}

func TestSet_OpenAllOrNothing(t *testing.T) {
	s, _ := newTestSet(t, countryDB(t))

	err := s.Open(cityDB(t), "/nonexistent/GeoIP.dat")
	var oe *geodat.OpenError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, 1, s.Len())
}

func TestSet_SetEncoding(t *testing.T) {
	s, _ := newTestSet(t, cityDB(t))
	ctx := context.Background()

	rec, err := s.City(ctx, "194.1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Z\xfcrich", *rec.City)

	require.NoError(t, s.SetEncoding("UTF-8"))
	require.Equal(t, geodat.UTF8, s.Charset())

	// databases already open keep their charset
	rec, err = s.City(ctx, "194.1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Z\xfcrich", *rec.City)

	later := NewSet(nil)
	require.NoError(t, later.SetEncoding("UTF-8"))
	require.NoError(t, later.Open(cityDB(t)))
	t.Cleanup(func() { _ = later.Close() })
	rec, err = later.City(ctx, "194.1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Zürich", *rec.City)

	err = s.SetEncoding("Shift_JIS")
	var ue *geodat.UnsupportedEncodingError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, geodat.UTF8, s.Charset())
}

func TestSet_SetEncodingAppliesToLaterOpens(t *testing.T) {
	s, _ := newTestSet(t, countryDB(t))
	require.NoError(t, s.SetEncoding("UTF-8"))
	require.NoError(t, s.Open(cityDB(t)))

	rec, err := s.City(context.Background(), "194.1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Zürich", *rec.City)
}

func TestSet_ReplaceKeepsCharset(t *testing.T) {
	path := cityDB(t)
	s, _ := newTestSet(t, path)
	require.NoError(t, s.SetEncoding("UTF-8"))

	db, err := Open(cityDB(t), s.Charset())
	require.NoError(t, err)
	old, ok := s.Replace(path, db)
	require.True(t, ok)
	require.NoError(t, old.Close())

	require.Equal(t, geodat.ISO88591, db.Charset())
	rec, err := s.City(context.Background(), "194.1.2.3")
	require.NoError(t, err)
	require.Equal(t, "Z\xfcrich", *rec.City)
}

func TestSet_Replace(t *testing.T) {
	path := countryDB(t)
	s, _ := newTestSet(t, path)

	db, err := geodat.FromBytes(geodattest.NewCountry().AddCountry("202.12.27.0/24", "AU").Bytes())
	require.NoError(t, err)

	old, ok := s.Replace(path, db)
	require.True(t, ok)
	require.NoError(t, old.Close())

	rec, err := s.Country(context.Background(), "202.12.27.33")
	require.NoError(t, err)
	require.Equal(t, "AU", *rec.Code)

	_, ok = s.Replace("/other/GeoIP.dat", db)
	require.False(t, ok)
	require.Equal(t, []string{path}, s.Paths())
}

func TestSet_Empty(t *testing.T) {
	s, r := newTestSet(t)

	country, err := s.Country(context.Background(), "202.12.27.33")
	require.NoError(t, err)
	require.Nil(t, country)

	city, err := s.City(context.Background(), "m.root-servers.net")
	require.NoError(t, err)
	require.Nil(t, city)
	require.Zero(t, r.calls.Load())
}
