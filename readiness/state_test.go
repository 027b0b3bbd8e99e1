package readiness

import (
	"sync"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateDegraded, "degraded"},
		{StateShuttingDown, "shutting_down"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStore_StartsInStarting(t *testing.T) {
	store := NewStore()

	if got := store.Get(); got != StateStarting {
		t.Errorf("Get() = %v, want StateStarting", got)
	}
}

func TestStore_SetAndGet(t *testing.T) {
	store := NewStore()

	if got := store.Set(StateReady); got != StateReady {
		t.Errorf("Set(StateReady) = %v, want StateReady", got)
	}
	if got := store.Get(); got != StateReady {
		t.Errorf("Get() = %v, want StateReady", got)
	}

	store.Set(StateDegraded)
	if got := store.Get(); got != StateDegraded {
		t.Errorf("Get() = %v, want StateDegraded", got)
	}
}

func TestStore_ShuttingDownIsTerminal(t *testing.T) {
	store := NewStore()
	store.Set(StateReady)
	store.Set(StateShuttingDown)

	if got := store.Set(StateReady); got != StateShuttingDown {
		t.Errorf("Set after shutdown = %v, want StateShuttingDown", got)
	}
	if got := store.Get(); got != StateShuttingDown {
		t.Errorf("Get() = %v, want StateShuttingDown", got)
	}
}

func TestStore_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		healthy    bool
		status     string
		wantReason bool
	}{
		{"starting", StateStarting, false, "not_ready", true},
		{"ready", StateReady, true, "ready", false},
		{"degraded", StateDegraded, false, "not_ready", true},
		{"shutting_down", StateShuttingDown, false, "not_ready", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			store.Set(tt.state)

			probe := store.Readiness()
			if probe.Healthy != tt.healthy {
				t.Errorf("Healthy = %v, want %v", probe.Healthy, tt.healthy)
			}
			if probe.Status != tt.status {
				t.Errorf("Status = %q, want %q", probe.Status, tt.status)
			}
			if (probe.Reason != "") != tt.wantReason {
				t.Errorf("Reason = %q, wantReason = %v", probe.Reason, tt.wantReason)
			}
		})
	}
}

func TestStore_LivenessHealthyInAllStates(t *testing.T) {
	for _, state := range []State{StateStarting, StateReady, StateDegraded, StateShuttingDown} {
		t.Run(state.String(), func(t *testing.T) {
			store := NewStore()
			store.Set(state)

			probe := store.Liveness()
			if !probe.Healthy {
				t.Errorf("Liveness() unhealthy in %v: %s", state, probe.Reason)
			}
			if probe.Status != "ok" {
				t.Errorf("Status = %q, want %q", probe.Status, "ok")
			}
		})
	}
}

func TestStore_LivenessFailsAfterDrainTimeout(t *testing.T) {
	store := NewStore(Config{DrainTimeout: time.Second})

	base := time.Now()
	store.now = func() time.Time { return base }
	store.Set(StateShuttingDown)

	// Still inside the drain window.
	store.now = func() time.Time { return base.Add(500 * time.Millisecond) }
	if probe := store.Liveness(); !probe.Healthy {
		t.Errorf("Liveness() unhealthy during drain: %s", probe.Reason)
	}

	// Past the drain window.
	store.now = func() time.Time { return base.Add(2 * time.Second) }
	probe := store.Liveness()
	if probe.Healthy {
		t.Error("Liveness() healthy after drain timeout")
	}
	if probe.Reason == "" {
		t.Error("Reason should explain the failure")
	}
}

func TestStore_LivenessStartupGrace(t *testing.T) {
	store := NewStore(Config{DrainTimeout: time.Second, StartupGrace: time.Second})

	base := time.Now()
	store.now = func() time.Time { return base }
	// Re-seed the transition time under the fake clock.
	store.current.Store(&transition{state: StateStarting, at: base})

	if probe := store.Liveness(); !probe.Healthy {
		t.Errorf("Liveness() unhealthy within grace: %s", probe.Reason)
	}

	store.now = func() time.Time { return base.Add(2 * time.Second) }
	if probe := store.Liveness(); probe.Healthy {
		t.Error("Liveness() healthy after startup grace expired")
	}
}

func TestStore_LivenessStartupGraceDisabledByDefault(t *testing.T) {
	store := NewStore()

	base := time.Now()
	store.now = func() time.Time { return base.Add(24 * time.Hour) }
	store.current.Store(&transition{state: StateStarting, at: base})

	if probe := store.Liveness(); !probe.Healthy {
		t.Errorf("Liveness() unhealthy with grace disabled: %s", probe.Reason)
	}
}

func TestStore_SetSameStateKeepsEntryTime(t *testing.T) {
	store := NewStore()

	base := time.Now()
	store.now = func() time.Time { return base }
	store.current.Store(&transition{state: StateReady, at: base})

	store.now = func() time.Time { return base.Add(time.Minute) }
	store.Set(StateReady)

	if got := store.Since(); got != time.Minute {
		t.Errorf("Since() = %v, want %v", got, time.Minute)
	}
}

func TestStore_ConcurrentSetAndGet(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	states := []State{StateReady, StateDegraded}

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.Set(states[i%len(states)])
		}(i)
		go func() {
			defer wg.Done()
			_ = store.Get()
			_ = store.Readiness()
		}()
	}
	wg.Wait()

	got := store.Get()
	if got != StateReady && got != StateDegraded {
		t.Errorf("Get() = %v, want StateReady or StateDegraded", got)
	}
}
