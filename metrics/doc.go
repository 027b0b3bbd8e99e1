// Package metrics provides a concurrency-safe registry of named counters,
// gauges, and histograms addressed by (name, label set) identity.
//
// The registry is the single source of truth for numeric observability state.
// Writers (request middleware, the system poller) update individual series;
// the export path reads a point-in-time Snapshot. Synchronization is per
// series: every counter and gauge is one atomic float, every histogram a
// fixed array of atomic bucket counts, so writers on different identities
// never contend and the registry is never locked as a whole for writes.
//
//	reg := metrics.NewRegistry()
//	_ = reg.IncrCounter("api_requests_total", metrics.LabelSet("method", "GET"), 1)
//	for _, sample := range reg.Snapshot() {
//	    // hand to an exporter
//	}
//
// Snapshot is consistent per series; it does not freeze the registry across
// series, which is acceptable for monitoring data.
package metrics
