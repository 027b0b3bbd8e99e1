// Command probekit runs the health-check service: liveness and readiness
// probes, a Prometheus scrape endpoint, periodic system sampling, and
// optional OTLP export of the same metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/probekit/httpmw"
	"github.com/jonwraymond/probekit/metrics"
	"github.com/jonwraymond/probekit/readiness"
	"github.com/jonwraymond/probekit/service"
	"github.com/jonwraymond/probekit/sysstat"
	"github.com/jonwraymond/probekit/telemetry"
)

type config struct {
	Addr            string        `env:"PROBEKIT_ADDR" envDefault:"127.0.0.1:5000"`
	ServiceName     string        `env:"PROBEKIT_SERVICE_NAME" envDefault:"healthcheck-service"`
	Version         string        `env:"PROBEKIT_VERSION" envDefault:"0.1.0"`
	LogLevel        string        `env:"PROBEKIT_LOG_LEVEL" envDefault:"info"`
	SampleInterval  time.Duration `env:"PROBEKIT_SAMPLE_INTERVAL" envDefault:"5s"`
	DrainTimeout    time.Duration `env:"PROBEKIT_DRAIN_TIMEOUT" envDefault:"30s"`
	StartupGrace    time.Duration `env:"PROBEKIT_STARTUP_GRACE" envDefault:"0s"`
	Buckets         []float64     `env:"PROBEKIT_BUCKETS" envSeparator:","`
	MetricsExporter string        `env:"PROBEKIT_METRICS_EXPORTER" envDefault:"none"`
	ExportInterval  time.Duration `env:"PROBEKIT_EXPORT_INTERVAL" envDefault:"60s"`
	TracingExporter string        `env:"PROBEKIT_TRACING_EXPORTER" envDefault:"none"`
	TraceSamplePct  float64       `env:"PROBEKIT_TRACE_SAMPLE_PCT" envDefault:"1.0"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "probekit: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.LogLevel)

	state := readiness.NewStore(readiness.Config{
		DrainTimeout: cfg.DrainTimeout,
		StartupGrace: cfg.StartupGrace,
	})
	registry := metrics.NewRegistry(metrics.Config{Buckets: cfg.Buckets})

	poller := sysstat.NewPoller(sysstat.NewSystemSampler(), sysstat.PollerConfig{
		Interval: cfg.SampleInterval,
		State:    state,
	})

	health := service.NewHealth(state, registry, service.Options{
		Poller: poller,
		Logger: logger.WithComponent("health"),
	})

	obs, err := telemetry.NewObserver(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Version:     cfg.Version,
		Tracing: telemetry.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			SamplePct: cfg.TraceSamplePct,
		},
		Metrics: telemetry.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
			Interval: cfg.ExportInterval,
		},
	}, telemetry.NewSnapshotProducer(health.Snapshot))
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux)

	wrap := httpmw.Telemetry(httpmw.Config{
		Registry: registry,
		Tracer:   obs.Tracer(),
		Logger:   logger.WithComponent("http"),
	})
	mux.Handle("GET /api/example", wrap(http.HandlerFunc(exampleHandler)))
	mux.Handle("GET /api/fail", wrap(http.HandlerFunc(failHandler)))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		logger.Info(gctx, "server running", telemetry.Field{Key: "addr", Value: cfg.Addr})
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		// Flip readiness first so load balancers stop routing, then let
		// in-flight requests drain within the timeout.
		state.Set(readiness.StateShuttingDown)
		logger.Info(context.Background(), "shutting down",
			telemetry.Field{Key: "drain_timeout", Value: cfg.DrainTimeout.String()})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Warm up the system gauges before announcing readiness; a failed first
	// sample is not fatal, the poller keeps retrying on its interval.
	if _, err := poller.Refresh(ctx); err != nil {
		logger.Warn(ctx, "initial system sample failed", telemetry.Field{Key: "error", Value: err.Error()})
	}
	state.Set(readiness.StateReady)
	logger.Info(ctx, "service ready")

	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obs.Shutdown(flushCtx); err != nil {
		logger.Error(flushCtx, "telemetry shutdown failed", telemetry.Field{Key: "error", Value: err.Error()})
	}

	return runErr
}

func exampleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"message":"API example response"}`))
}

func failHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
