package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveLookup(t *testing.T) {
	before := testutil.ToFloat64(lookups.WithLabelValues("country", ResultHit))
	ObserveLookup("country", ResultHit)
	ObserveLookup("country", ResultHit)
	require.Equal(t, before+2, testutil.ToFloat64(lookups.WithLabelValues("country", ResultHit)))
}

func TestSetDatabases(t *testing.T) {
	SetDatabases(3)
	require.Equal(t, 3.0, testutil.ToFloat64(databases))
}

func TestObserveReload(t *testing.T) {
	before := testutil.ToFloat64(reloads.WithLabelValues(ResultError))
	ObserveReload(false)
	require.Equal(t, before+1, testutil.ToFloat64(reloads.WithLabelValues(ResultError)))
}
