package data

import (
	"errors"
	"net/netip"
	"os"
	"testing"

	"github.com/TomasB/geolookup/internal/geodat"
)

const testMMDBPath = "../../testdata/GeoLite2-Country-Test.mmdb"

func skipIfNoMMDB(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testMMDBPath); os.IsNotExist(err) {
		t.Skip("test MMDB file not found; download it with: curl -L -o testdata/GeoLite2-Country-Test.mmdb https://github.com/maxmind/MaxMind-DB/raw/main/test-data/GeoLite2-Country-Test.mmdb")
	}
}

func TestNewMmdbReader_Success(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	if reader.Kind() != geodat.KindCountry {
		t.Errorf("expected country kind, got %s", reader.Kind())
	}
	if reader.Info() == "" {
		t.Error("expected non-empty info")
	}
}

func TestNewMmdbReader_InvalidPath(t *testing.T) {
	_, err := NewMmdbReader("/nonexistent/path.mmdb")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
	var oe *geodat.OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *geodat.OpenError, got %T", err)
	}
	if oe.Path != "/nonexistent/path.mmdb" {
		t.Errorf("expected path in error, got %q", oe.Path)
	}
}

func TestNewMmdbReaderFromBytes_Garbage(t *testing.T) {
	if _, err := NewMmdbReaderFromBytes([]byte("not a database")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestMmdbKind(t *testing.T) {
	tests := []struct {
		databaseType string
		want         geodat.Kind
	}{
		{"GeoLite2-Country", geodat.KindCountry},
		{"GeoIP2-Country", geodat.KindCountry},
		{"GeoLite2-City", geodat.KindCity},
		{"GeoIP2-Enterprise", geodat.KindCity},
		{"GeoLite2-ASN", geodat.KindOther},
		{"GeoIP2-ISP", geodat.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.databaseType, func(t *testing.T) {
			if got := mmdbKind(tt.databaseType); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMmdbReader_Country(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	tests := []struct {
		name  string
		ip    string
		want  string
		want3 string
	}{
		{
			name:  "UK IP",
			ip:    "2.125.160.216",
			want:  "GB",
			want3: "GBR",
		},
		{
			name:  "US IP",
			ip:    "216.160.83.56",
			want:  "US",
			want3: "USA",
		},
		{
			name:  "IPv6 JP",
			ip:    "2001:218::",
			want:  "JP",
			want3: "JPN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := netip.ParseAddr(tt.ip)
			if err != nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}

			country, err := reader.Country(addr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if country == nil || country.Code == nil {
				t.Fatalf("expected a record for %s", tt.ip)
			}
			if *country.Code != tt.want {
				t.Errorf("expected country %s, got %s", tt.want, *country.Code)
			}
			if country.Code3 == nil || *country.Code3 != tt.want3 {
				t.Errorf("expected code3 %s, got %v", tt.want3, country.Code3)
			}
			if country.Name == nil {
				t.Error("expected a country name")
			}
		})
	}
}

func TestMmdbReader_Miss(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	country, err := reader.Country(netip.MustParseAddr("127.0.0.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if country != nil {
		t.Errorf("expected no record, got %+v", country)
	}

	city, err := reader.City(netip.MustParseAddr("2.125.160.216"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if city != nil {
		t.Error("country database must not answer city lookups")
	}
}

func TestMmdbReader_Close(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("failed to close reader: %v", err)
	}
}
