package archiver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.observe(Outcome{Archived: true})
	m.retried()
	m.wrote(10)
}

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	m.observe(Outcome{Archived: true})
	m.observe(Outcome{Archived: true})
	m.observe(Outcome{})
	m.retried()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.items.WithLabelValues(StateArchived)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.items.WithLabelValues(StateSkipped)))
	n, err := testutil.GatherAndCount(m.Registry(), "photos_archiver_media_items_total", "photos_archiver_fetch_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	path := filepath.Join(t.TempDir(), "archiver.prom")
	require.NoError(t, m.WriteTextfile(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `photos_archiver_media_items_total{outcome="archived"} 2`)
	assert.Contains(t, string(content), "photos_archiver_fetch_retries_total 1")
}
