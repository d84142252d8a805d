package archiver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine outcomes, fetch retries and bytes written. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	retries  prometheus.Counter
	bytes    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photos_archiver_media_items_total",
			Help: "Media items processed, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photos_archiver_fetch_retries_total",
			Help: "Fetch attempts retried after a transient failure.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photos_archiver_bytes_written_total",
			Help: "Bytes written to the archive destination.",
		}),
	}
	m.registry.MustRegister(m.items, m.retries, m.bytes)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the node_exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(o Outcome) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(o.State()).Inc()
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) wrote(n int) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
}
