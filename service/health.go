package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/probekit/metrics"
	"github.com/jonwraymond/probekit/readiness"
	"github.com/jonwraymond/probekit/sysstat"
	"github.com/jonwraymond/probekit/telemetry"
)

// Gauge names merged into the snapshot alongside the registry series.
const (
	MetricServiceReady      = "service_ready"
	MetricSystemCPU         = "system_cpu_usage"
	MetricSystemMem         = "system_mem_used"
	MetricSystemSampleStale = "system_sample_stale"
)

// Options holds the optional collaborators of Health.
type Options struct {
	// Poller supplies the system gauges merged into Snapshot. Nil omits them.
	Poller *sysstat.Poller

	// Logger receives probe boundary faults. Nil discards them.
	Logger telemetry.Logger
}

// Health is the probe and metrics query façade.
type Health struct {
	state    *readiness.Store
	registry *metrics.Registry
	poller   *sysstat.Poller
	logger   telemetry.Logger
}

// NewHealth creates the façade over a readiness store and a registry.
func NewHealth(state *readiness.Store, registry *metrics.Registry, opts ...Options) *Health {
	h := &Health{
		state:    state,
		registry: registry,
		logger:   telemetry.NewNoopLogger(),
	}
	if len(opts) > 0 {
		h.poller = opts[0].Poller
		if opts[0].Logger != nil {
			h.logger = opts[0].Logger
		}
	}
	return h
}

// probeResponse is the JSON body of the probe endpoints.
type probeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// LivenessHandler returns the handler for GET /health/live.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer h.recoverProbe(r.Context(), w, "liveness")

		probe := h.state.Liveness()
		body := probeResponse{Status: probe.Status, Reason: probe.Reason}
		if probe.Healthy {
			body.Message = "service is alive"
		}
		writeProbe(w, probe.Healthy, body)
	}
}

// ReadinessHandler returns the handler for GET /health/ready.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer h.recoverProbe(r.Context(), w, "readiness")

		probe := h.state.Readiness()
		body := probeResponse{Status: probe.Status, Reason: probe.Reason}
		if probe.Healthy {
			body.Message = "service is ready"
		}
		writeProbe(w, probe.Healthy, body)
	}
}

// Snapshot returns the registry snapshot with the readiness state and the
// latest system reading merged in as gauges. The system gauges come from the
// background poller, never from a fresh OS query, so this is safe on the
// serving path.
func (h *Health) Snapshot() []metrics.Sample {
	samples := h.registry.Snapshot()

	ready := 0.0
	if h.state.Get() == readiness.StateReady {
		ready = 1.0
	}
	samples = append(samples, metrics.Sample{
		Name:      MetricServiceReady,
		Kind:      metrics.KindGauge,
		Value:     ready,
		Timestamp: time.Now(),
	})

	if h.poller == nil {
		return samples
	}

	snap, ok := h.poller.Latest()
	if !ok {
		return samples
	}

	staleFlag := 0.0
	if snap.Stale {
		staleFlag = 1.0
	}
	ts := snap.Taken

	return append(samples,
		metrics.Sample{Name: MetricSystemCPU, Kind: metrics.KindGauge, Value: snap.CPUFraction, Timestamp: ts},
		metrics.Sample{Name: MetricSystemMem, Kind: metrics.KindGauge, Value: float64(snap.MemUsedBytes), Timestamp: ts},
		metrics.Sample{Name: MetricSystemSampleStale, Kind: metrics.KindGauge, Value: staleFlag, Timestamp: ts},
	)
}

// RegisterHandlers registers the probe and metrics endpoints on the mux.
func (h *Health) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", h.LivenessHandler())
	mux.HandleFunc("GET /health/ready", h.ReadinessHandler())
	mux.Handle("GET /metrics", telemetry.Handler(h.Snapshot))
}

func writeProbe(w http.ResponseWriter, healthy bool, body probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// recoverProbe converts a fault during probe evaluation into a 503 with a
// diagnostic body. Probe endpoints never propagate an unhandled fault.
func (h *Health) recoverProbe(ctx context.Context, w http.ResponseWriter, probe string) {
	p := recover()
	if p == nil {
		return
	}

	h.logger.Error(ctx, "probe evaluation failed",
		telemetry.Field{Key: "probe", Value: probe},
		telemetry.Field{Key: "panic", Value: fmt.Sprint(p)},
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(probeResponse{
		Status: "error",
		Reason: "probe evaluation failed",
	})
}
