package readiness

import (
	"sync/atomic"
	"time"
)

// State represents the lifecycle state of the process.
type State int

const (
	// StateStarting indicates startup dependencies have not yet completed.
	StateStarting State = iota
	// StateReady indicates the process can serve real traffic.
	StateReady
	// StateDegraded indicates a detected fault; the process is alive but
	// should not receive new traffic.
	StateDegraded
	// StateShuttingDown indicates a shutdown signal was received. The state
	// is terminal: once entered it is never left.
	StateShuttingDown
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Config configures a Store.
type Config struct {
	// DrainTimeout is how long liveness stays healthy after entering
	// StateShuttingDown, giving in-flight requests time to complete.
	// Default: 30 seconds.
	DrainTimeout time.Duration

	// StartupGrace bounds how long the process may remain in StateStarting
	// before liveness reports unhealthy. Zero disables the check.
	StartupGrace time.Duration
}

// transition is the atomically swapped (state, entered-at) pair. Keeping both
// in one allocation makes Set linearizable with respect to Since and the
// probe reads.
type transition struct {
	state State
	at    time.Time
}

// Store holds the process-wide lifecycle state.
//
// Contract:
// - Concurrency: safe for concurrent use; Set is linearizable w.r.t. Get.
// - Get and the probe methods never block.
type Store struct {
	config  Config
	current atomic.Pointer[transition]
	now     func() time.Time
}

// NewStore creates a Store in StateStarting.
func NewStore(config ...Config) *Store {
	cfg := Config{
		DrainTimeout: 30 * time.Second,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.DrainTimeout <= 0 {
			cfg.DrainTimeout = 30 * time.Second
		}
	}

	s := &Store{
		config: cfg,
		now:    time.Now,
	}
	s.current.Store(&transition{state: StateStarting, at: s.now()})
	return s
}

// Set transitions to next and returns the state in effect after the call.
// Setting the current state again does not reset the state's entry time.
// Once the store is in StateShuttingDown all transitions are ignored.
func (s *Store) Set(next State) State {
	for {
		cur := s.current.Load()
		if cur.state == StateShuttingDown {
			return StateShuttingDown
		}
		if cur.state == next {
			return next
		}
		if s.current.CompareAndSwap(cur, &transition{state: next, at: s.now()}) {
			return next
		}
	}
}

// Get returns the current state.
func (s *Store) Get() State {
	return s.current.Load().state
}

// Since returns how long the store has been in its current state.
func (s *Store) Since() time.Duration {
	cur := s.current.Load()
	return s.now().Sub(cur.at)
}

// Probe is the outcome of a liveness or readiness evaluation.
type Probe struct {
	// Healthy reports whether the probe passed.
	Healthy bool

	// Status is the short machine-readable status string.
	Status string

	// Reason explains an unhealthy result. Empty when healthy.
	Reason string
}

// Liveness evaluates the liveness probe. It is healthy in every state except
// when StateShuttingDown has been held longer than the drain timeout, or when
// a startup grace is configured and StateStarting has outlived it.
func (s *Store) Liveness() Probe {
	cur := s.current.Load()
	held := s.now().Sub(cur.at)

	switch cur.state {
	case StateShuttingDown:
		if held > s.config.DrainTimeout {
			return Probe{Status: "unavailable", Reason: "drain timeout exceeded"}
		}
	case StateStarting:
		if s.config.StartupGrace > 0 && held > s.config.StartupGrace {
			return Probe{Status: "unavailable", Reason: "startup grace period exceeded"}
		}
	}
	return Probe{Healthy: true, Status: "ok"}
}

// Readiness evaluates the readiness probe: healthy iff the state is
// StateReady. A store still in StateStarting answers exactly like one that is
// not ready; "not yet initialized" is not a distinct external condition.
func (s *Store) Readiness() Probe {
	state := s.Get()
	if state == StateReady {
		return Probe{Healthy: true, Status: "ready"}
	}

	var reason string
	switch state {
	case StateStarting:
		reason = "startup has not completed"
	case StateDegraded:
		reason = "service is degraded"
	case StateShuttingDown:
		reason = "service is shutting down"
	default:
		reason = "service is not ready"
	}
	return Probe{Status: "not_ready", Reason: reason}
}
