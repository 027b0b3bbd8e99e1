package sysstat

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/probekit/readiness"
)

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between samples. Default: 5 seconds.
	Interval time.Duration

	// State, when set, stops the poller from scheduling new samples once the
	// process enters readiness.StateShuttingDown.
	State *readiness.Store
}

// Poller takes periodic system samples and serves the latest one.
//
// Contract:
// - Concurrency: Latest and Refresh are safe for concurrent use.
// - Latest never blocks and never performs I/O.
type Poller struct {
	sampler Sampler
	config  PollerConfig
	last    atomic.Pointer[Snapshot]
	err     atomic.Pointer[error]
	group   singleflight.Group
	now     func() time.Time
}

// NewPoller creates a poller over the given sampler. Run must be called for
// periodic sampling to happen.
func NewPoller(sampler Sampler, config ...PollerConfig) *Poller {
	cfg := PollerConfig{
		Interval: 5 * time.Second,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Interval <= 0 {
			cfg.Interval = 5 * time.Second
		}
	}

	return &Poller{
		sampler: sampler,
		config:  cfg,
		now:     time.Now,
	}
}

// Run samples immediately and then on every interval tick until ctx is done
// or the process starts shutting down. It always returns nil after a clean
// stop so it can run under an errgroup without aborting its siblings.
func (p *Poller) Run(ctx context.Context) error {
	p.sampleOnce(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.shuttingDown() {
				return nil
			}
			p.sampleOnce(ctx)
		}
	}
}

// Latest returns the most recent snapshot with its age filled in. The second
// return is false if no sample has ever succeeded.
func (p *Poller) Latest() (Snapshot, bool) {
	last := p.last.Load()
	if last == nil {
		return Snapshot{}, false
	}
	snap := *last
	snap.Age = p.now().Sub(snap.Taken)
	return snap, true
}

// Refresh takes an immediate sample, coalescing concurrent callers into a
// single OS query. On failure it returns the last known good snapshot marked
// stale along with the sampling error.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := p.group.Do("sample", func() (any, error) {
		return p.sampleOnce(ctx), p.lastErr()
	})
	snap := v.(Snapshot)
	snap.Age = p.now().Sub(snap.Taken)
	return snap, err
}

// sampleOnce performs one sampling attempt, updating the stored snapshot. On
// failure the previous snapshot is kept and marked stale.
func (p *Poller) sampleOnce(ctx context.Context) Snapshot {
	snap, err := p.sampler.Sample(ctx)
	if err != nil {
		prev := p.last.Load()
		if prev == nil {
			// Nothing to fall back to yet; publish a zero snapshot so the
			// series still exists for exporters.
			stale := Snapshot{Taken: p.now(), Stale: true}
			p.last.Store(&stale)
			p.err.Store(&err)
			return stale
		}
		stale := *prev
		stale.Stale = true
		p.last.Store(&stale)
		p.err.Store(&err)
		return stale
	}

	p.last.Store(&snap)
	p.err.Store(nil)
	return snap
}

// lastErr returns the error from the most recent sampling attempt, nil when
// it succeeded.
func (p *Poller) lastErr() error {
	if e := p.err.Load(); e != nil {
		return *e
	}
	return nil
}

func (p *Poller) shuttingDown() bool {
	return p.config.State != nil && p.config.State.Get() == readiness.StateShuttingDown
}
