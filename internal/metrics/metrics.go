// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geolookup",
		Name:      "lookups_total",
		Help:      "Lookups by record kind and result.",
	}, []string{"kind", "result"})

	databases = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geolookup",
		Name:      "databases",
		Help:      "Number of databases currently loaded.",
	})

	reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geolookup",
		Name:      "reloads_total",
		Help:      "Database reloads triggered by file changes.",
	}, []string{"result"})
)

// ObserveLookup counts one lookup.
func ObserveLookup(kind, result string) {
	lookups.WithLabelValues(kind, result).Inc()
}

// SetDatabases records the number of loaded databases.
func SetDatabases(n int) {
	databases.Set(float64(n))
}

// ObserveReload counts one reload attempt.
func ObserveReload(ok bool) {
	result := "ok"
	if !ok {
		result = ResultError
	}
	reloads.WithLabelValues(result).Inc()
}
