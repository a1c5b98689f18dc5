package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.RunsTotal.WithLabelValues("burn-index", "succeeded").Inc()
	m.CatalogCache.WithLabelValues("hit").Add(2)
	m.RunsInProgress.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("burn-index", "succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CatalogCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsInProgress))

	// A second instance must not collide with the first.
	other := NewMetricsForTesting()
	assert.Equal(t, 0.0, testutil.ToFloat64(other.RunsInProgress))
}
