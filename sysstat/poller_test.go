package sysstat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/probekit/readiness"
)

// fakeSampler returns queued snapshots or errors in order, repeating the last
// entry once exhausted.
type fakeSampler struct {
	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
	calls int
}

func (f *fakeSampler) Sample(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.snaps) {
		i = len(f.snaps) - 1
	}
	f.calls++

	if f.errs[i] != nil {
		return Snapshot{}, f.errs[i]
	}
	return f.snaps[i], nil
}

func (f *fakeSampler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPoller_LatestBeforeAnySample(t *testing.T) {
	poller := NewPoller(&fakeSampler{snaps: []Snapshot{{}}, errs: []error{nil}})

	if _, ok := poller.Latest(); ok {
		t.Error("Latest() ok = true before any sample")
	}
}

func TestPoller_RefreshStoresSnapshot(t *testing.T) {
	want := Snapshot{CPUFraction: 0.42, MemUsedBytes: 1 << 30, Taken: time.Now()}
	poller := NewPoller(&fakeSampler{snaps: []Snapshot{want}, errs: []error{nil}})

	got, err := poller.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got.CPUFraction != want.CPUFraction || got.MemUsedBytes != want.MemUsedBytes {
		t.Errorf("Refresh() = %+v, want %+v", got, want)
	}
	if got.Stale {
		t.Error("Stale = true after successful sample")
	}

	latest, ok := poller.Latest()
	if !ok {
		t.Fatal("Latest() ok = false after Refresh")
	}
	if latest.MemUsedBytes != want.MemUsedBytes {
		t.Errorf("Latest().MemUsedBytes = %d, want %d", latest.MemUsedBytes, want.MemUsedBytes)
	}
}

func TestPoller_FailureKeepsLastGoodAndMarksStale(t *testing.T) {
	good := Snapshot{CPUFraction: 0.5, MemUsedBytes: 2 << 30, Taken: time.Now()}
	sampleErr := errors.New("proc unavailable")
	sampler := &fakeSampler{
		snaps: []Snapshot{good, {}},
		errs:  []error{nil, sampleErr},
	}
	poller := NewPoller(sampler)

	if _, err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}

	got, err := poller.Refresh(context.Background())
	if !errors.Is(err, sampleErr) {
		t.Fatalf("second Refresh() error = %v, want %v", err, sampleErr)
	}
	if !got.Stale {
		t.Error("Stale = false after failed sample")
	}
	if got.CPUFraction != good.CPUFraction || got.MemUsedBytes != good.MemUsedBytes {
		t.Errorf("Refresh() = %+v, want last good values %+v", got, good)
	}

	latest, ok := poller.Latest()
	if !ok {
		t.Fatal("Latest() ok = false")
	}
	if !latest.Stale {
		t.Error("Latest().Stale = false, want true")
	}
}

func TestPoller_FailureBeforeFirstSuccessPublishesZeroSnapshot(t *testing.T) {
	sampler := &fakeSampler{snaps: []Snapshot{{}}, errs: []error{errors.New("boom")}}
	poller := NewPoller(sampler)

	got, err := poller.Refresh(context.Background())
	if err == nil {
		t.Fatal("Refresh() error = nil, want sampling error")
	}
	if !got.Stale {
		t.Error("Stale = false, want true")
	}

	// The series must still exist for exporters.
	if _, ok := poller.Latest(); !ok {
		t.Error("Latest() ok = false, want a published zero snapshot")
	}
}

func TestPoller_LatestFillsAge(t *testing.T) {
	taken := time.Now().Add(-10 * time.Second)
	poller := NewPoller(&fakeSampler{snaps: []Snapshot{{Taken: taken}}, errs: []error{nil}})

	if _, err := poller.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	latest, _ := poller.Latest()
	if latest.Age < 10*time.Second {
		t.Errorf("Age = %v, want >= 10s", latest.Age)
	}
}

func TestPoller_RunStopsOnContextCancel(t *testing.T) {
	sampler := &fakeSampler{snaps: []Snapshot{{Taken: time.Now()}}, errs: []error{nil}}
	poller := NewPoller(sampler, PollerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	if sampler.callCount() < 2 {
		t.Errorf("call count = %d, want periodic sampling", sampler.callCount())
	}
}

func TestPoller_RunStopsOnShutdownState(t *testing.T) {
	state := readiness.NewStore()
	sampler := &fakeSampler{snaps: []Snapshot{{Taken: time.Now()}}, errs: []error{nil}}
	poller := NewPoller(sampler, PollerConfig{
		Interval: 5 * time.Millisecond,
		State:    state,
	})

	done := make(chan error, 1)
	go func() { done <- poller.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	state.Set(readiness.StateShuttingDown)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop after shutdown state")
	}
}
