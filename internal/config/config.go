// Package config reads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds the service settings.
type Config struct {
	LogLevel        slog.Level
	Port            string
	GRPCPort        string
	Databases       []string
	Encoding        string
	DNSServer       string
	DNSTimeout      time.Duration
	CacheSize       int
	CacheTTL        time.Duration
	WatchDatabases  bool
	WatchDebounce   time.Duration
	ShutdownTimeout time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:        slog.LevelInfo,
		Port:            "8080",
		GRPCPort:        "9090",
		Databases:       []string{"data/GeoIP.dat"},
		Encoding:        "ISO-8859-1",
		DNSTimeout:      2 * time.Second,
		CacheSize:       1024,
		CacheTTL:        5 * time.Minute,
		WatchDatabases:  true,
		WatchDebounce:   time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads a .env file from the working directory when one exists and
// then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}
	if v, ok := get("PORT"); ok {
		cfg.Port = v
	}
	if v, ok := get("GRPC_PORT"); ok {
		cfg.GRPCPort = v
	}
	if v, ok := get("GEOIP_DATABASES"); ok {
		cfg.Databases = splitList(v)
	} else if v, ok := get("MMDB_PATH"); ok {
		cfg.Databases = []string{v}
	}
	if len(cfg.Databases) == 0 {
		return Config{}, fmt.Errorf("GEOIP_DATABASES lists no databases")
	}
	if v, ok := get("GEOIP_ENCODING"); ok {
		cfg.Encoding = v
	}
	if v, ok := get("DNS_SERVER"); ok {
		cfg.DNSServer = v
	}

	var err error
	if v, ok := get("DNS_TIMEOUT"); ok {
		if cfg.DNSTimeout, err = cast.ToDurationE(v); err != nil {
			return Config{}, fmt.Errorf("invalid DNS_TIMEOUT %q: %w", v, err)
		}
	}
	if v, ok := get("RESOLVER_CACHE_SIZE"); ok {
		if cfg.CacheSize, err = cast.ToIntE(v); err != nil {
			return Config{}, fmt.Errorf("invalid RESOLVER_CACHE_SIZE %q: %w", v, err)
		}
	}
	if v, ok := get("RESOLVER_CACHE_TTL"); ok {
		if cfg.CacheTTL, err = cast.ToDurationE(v); err != nil {
			return Config{}, fmt.Errorf("invalid RESOLVER_CACHE_TTL %q: %w", v, err)
		}
	}
	if v, ok := get("WATCH_DATABASES"); ok {
		if cfg.WatchDatabases, err = cast.ToBoolE(v); err != nil {
			return Config{}, fmt.Errorf("invalid WATCH_DATABASES %q: %w", v, err)
		}
	}
	if v, ok := get("WATCH_DEBOUNCE"); ok {
		if cfg.WatchDebounce, err = cast.ToDurationE(v); err != nil {
			return Config{}, fmt.Errorf("invalid WATCH_DEBOUNCE %q: %w", v, err)
		}
	}
	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		if cfg.ShutdownTimeout, err = cast.ToDurationE(v); err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
