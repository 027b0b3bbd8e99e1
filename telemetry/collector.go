package telemetry

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/probekit/metrics"
)

// SnapshotCollector is a prometheus.Collector that renders registry snapshots
// as constant metrics, so a scrape of /metrics always reflects the current
// registry state without a second copy of the data.
//
// It is an unchecked collector: series appear and disappear with the
// snapshot, so Describe intentionally sends no descriptors.
type SnapshotCollector struct {
	source SnapshotSource
}

// NewSnapshotCollector creates a collector over the given source.
func NewSnapshotCollector(source SnapshotSource) *SnapshotCollector {
	return &SnapshotCollector{source: source}
}

// Describe implements prometheus.Collector.
func (c *SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source() {
		keys := make([]string, len(s.Labels))
		values := make([]string, len(s.Labels))
		for i, l := range s.Labels {
			keys[i] = sanitizeName(l.Key)
			values[i] = l.Value
		}

		desc := prometheus.NewDesc(sanitizeName(s.Name), "", keys, nil)

		var m prometheus.Metric
		var err error
		switch s.Kind {
		case metrics.KindCounter:
			m, err = prometheus.NewConstMetric(desc, prometheus.CounterValue, s.Value, values...)
		case metrics.KindGauge:
			m, err = prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.Value, values...)
		case metrics.KindHistogram:
			// Prometheus buckets are cumulative per upper bound; the +Inf
			// bucket is implied by the total count.
			buckets := make(map[float64]uint64, len(s.Bounds))
			var cum uint64
			for i, bound := range s.Bounds {
				cum += s.Buckets[i]
				buckets[bound] = cum
			}
			m, err = prometheus.NewConstHistogram(desc, s.Count, s.Sum, buckets, values...)
		default:
			continue
		}
		if err != nil {
			// A malformed name or label set poisons one series, not the scrape.
			continue
		}
		ch <- m
	}
}

// Handler returns an HTTP handler serving the snapshot in Prometheus text
// format from a private registry.
func Handler(source SnapshotSource) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewSnapshotCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// sanitizeName maps a metric or label name onto the Prometheus character set.
func sanitizeName(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
