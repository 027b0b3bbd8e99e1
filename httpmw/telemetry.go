package httpmw

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/probekit/metrics"
	"github.com/jonwraymond/probekit/telemetry"
)

// Metric names recorded by the middleware.
const (
	MetricRequestsTotal   = "api_requests_total"
	MetricRequestDuration = "api_request_duration_seconds"
	MetricErrorsTotal     = "api_errors_total"
)

// Config configures the telemetry middleware.
type Config struct {
	// Registry receives the per-request metrics. Required.
	Registry *metrics.Registry

	// Tracer, when set, opens a server span per request.
	Tracer trace.Tracer

	// Logger, when set, writes one access log entry per request.
	Logger telemetry.Logger
}

// Telemetry returns a middleware that instruments every request.
func Telemetry(cfg Config) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := r.Method
			path := r.URL.Path

			var span trace.Span
			if cfg.Tracer != nil {
				ctx := r.Context()
				ctx, span = cfg.Tracer.Start(ctx, method+" "+path,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						attribute.String("http.request.method", method),
						attribute.String("url.path", path),
					),
				)
				r = r.WithContext(ctx)
			}

			rec := &statusRecorder{ResponseWriter: w}

			// The deferred block is the only place metrics are recorded, so
			// no exit path (normal return, error status, or panic) can
			// skip it.
			defer func() {
				panicked := recover()
				if panicked != nil {
					rec.status = http.StatusInternalServerError
					if !rec.wrote {
						http.Error(w, "internal server error", http.StatusInternalServerError)
					}
				}

				status := rec.Status()
				duration := time.Since(start)
				record(cfg.Registry, method, path, status, duration)

				if span != nil {
					span.SetAttributes(attribute.Int("http.response.status_code", status))
					if status >= http.StatusInternalServerError {
						span.SetStatus(codes.Error, http.StatusText(status))
					} else {
						span.SetStatus(codes.Ok, "")
					}
					span.End()
				}

				fields := []telemetry.Field{
					{Key: "method", Value: method},
					{Key: "path", Value: path},
					{Key: "status", Value: status},
					{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000.0},
				}
				switch {
				case panicked != nil:
					logger.Error(r.Context(), "request panicked", append(fields, telemetry.Field{Key: "panic", Value: panicked})...)
				case status >= http.StatusInternalServerError:
					logger.Error(r.Context(), "request failed", fields...)
				default:
					logger.Info(r.Context(), "request completed", fields...)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// record updates the three request series. Deltas are constant so the only
// possible registry error is a kind collision, which is a programming error;
// dropping it keeps the middleware panic-free per its contract.
func record(reg *metrics.Registry, method, path string, status int, duration time.Duration) {
	statusText := strconv.Itoa(status)

	_ = reg.IncrCounter(MetricRequestsTotal,
		metrics.LabelSet("method", method, "path", path, "status", statusText), 1)

	_ = reg.ObserveHistogram(MetricRequestDuration,
		metrics.LabelSet("method", method, "path", path), duration.Seconds())

	if errType := classify(status); errType != "" {
		_ = reg.IncrCounter(MetricErrorsTotal, metrics.LabelSet("type", errType), 1)
	}
}

// classify maps a status code to an error type label, or "" for success.
func classify(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server"
	case status >= http.StatusBadRequest:
		return "client"
	default:
		return ""
	}
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.status = http.StatusOK
		r.wrote = true
	}
	return r.ResponseWriter.Write(b)
}

// Status returns the recorded status, defaulting to 200 when the handler
// wrote nothing.
func (r *statusRecorder) Status() int {
	if !r.wrote && r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
