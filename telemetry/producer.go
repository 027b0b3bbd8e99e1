package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonwraymond/probekit/metrics"
)

// SnapshotSource returns the current metric samples for export.
type SnapshotSource func() []metrics.Sample

// SnapshotProducer bridges registry snapshots into the OpenTelemetry metrics
// export pipeline. Register it on a periodic reader (or the prometheus
// exporter) and every export cycle pulls a fresh snapshot.
//
// Contract:
// - Concurrency: safe for concurrent use; the source must be as well.
type SnapshotProducer struct {
	source SnapshotSource
	scope  instrumentation.Scope
	start  time.Time
}

// NewSnapshotProducer creates a producer over the given source.
func NewSnapshotProducer(source SnapshotSource) *SnapshotProducer {
	return &SnapshotProducer{
		source: source,
		scope:  instrumentation.Scope{Name: "github.com/jonwraymond/probekit"},
		start:  time.Now(),
	}
}

// Produce converts the current snapshot to OpenTelemetry metric data.
// Counters become cumulative monotonic sums, gauges become gauges, and
// histograms become cumulative histograms.
func (p *SnapshotProducer) Produce(ctx context.Context) ([]metricdata.ScopeMetrics, error) {
	samples := p.source()
	if len(samples) == 0 {
		return nil, nil
	}

	// Group samples by metric name, preserving snapshot order. The registry
	// guarantees one kind per name.
	var names []string
	byName := make(map[string][]metrics.Sample)
	for _, s := range samples {
		if _, ok := byName[s.Name]; !ok {
			names = append(names, s.Name)
		}
		byName[s.Name] = append(byName[s.Name], s)
	}

	out := make([]metricdata.Metrics, 0, len(names))
	for _, name := range names {
		group := byName[name]
		m := metricdata.Metrics{Name: name}

		switch group[0].Kind {
		case metrics.KindCounter:
			sum := metricdata.Sum[float64]{
				Temporality: metricdata.CumulativeTemporality,
				IsMonotonic: true,
			}
			for _, s := range group {
				sum.DataPoints = append(sum.DataPoints, p.dataPoint(s))
			}
			m.Data = sum

		case metrics.KindGauge:
			gauge := metricdata.Gauge[float64]{}
			for _, s := range group {
				gauge.DataPoints = append(gauge.DataPoints, p.dataPoint(s))
			}
			m.Data = gauge

		case metrics.KindHistogram:
			hist := metricdata.Histogram[float64]{
				Temporality: metricdata.CumulativeTemporality,
			}
			for _, s := range group {
				hist.DataPoints = append(hist.DataPoints, metricdata.HistogramDataPoint[float64]{
					Attributes:   attributeSet(s.Labels),
					StartTime:    p.start,
					Time:         s.Timestamp,
					Count:        s.Count,
					Sum:          s.Sum,
					Bounds:       s.Bounds,
					BucketCounts: s.Buckets,
				})
			}
			m.Data = hist
		}

		out = append(out, m)
	}

	return []metricdata.ScopeMetrics{{Scope: p.scope, Metrics: out}}, nil
}

func (p *SnapshotProducer) dataPoint(s metrics.Sample) metricdata.DataPoint[float64] {
	return metricdata.DataPoint[float64]{
		Attributes: attributeSet(s.Labels),
		StartTime:  p.start,
		Time:       s.Timestamp,
		Value:      s.Value,
	}
}

func attributeSet(labels []metrics.Label) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kvs = append(kvs, attribute.String(l.Key, l.Value))
	}
	return attribute.NewSet(kvs...)
}
