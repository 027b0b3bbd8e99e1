// Package service exposes the probe and metrics query façade to the HTTP
// layer.
//
// Health composes the readiness store, the metrics registry, and the system
// poller into three endpoints: /health/live, /health/ready, and /metrics.
// Probe handlers are pure reads and always answer with a well-formed JSON
// body; an internal fault during evaluation is caught at this boundary and
// converted to a 503 instead of propagating.
package service
