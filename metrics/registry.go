package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the type of a metric series.
type Kind int

const (
	// KindCounter is a monotonically non-decreasing value.
	KindCounter Kind = iota
	// KindGauge holds the last written value.
	KindGauge
	// KindHistogram accumulates bucketed observations with a running sum and count.
	KindHistogram
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Label is one (key, value) pair of a metric identity.
type Label struct {
	Key   string
	Value string
}

// LabelSet builds a label slice from alternating key, value arguments.
// Odd trailing arguments are dropped.
func LabelSet(kv ...string) []Label {
	labels := make([]Label, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		labels = append(labels, Label{Key: kv[i], Value: kv[i+1]})
	}
	return labels
}

// Sample is one series read from a Snapshot.
type Sample struct {
	// Name is the metric name.
	Name string

	// Kind is the series kind.
	Kind Kind

	// Labels is the canonical (key-sorted) label set.
	Labels []Label

	// Value is the current value for counters and gauges.
	Value float64

	// Bounds are the upper bucket boundaries for histograms.
	Bounds []float64

	// Buckets are per-bucket observation counts for histograms. Its length is
	// len(Bounds)+1; the final entry is the implicit +Inf bucket.
	Buckets []uint64

	// Sum is the running sum of histogram observations.
	Sum float64

	// Count is the total number of histogram observations.
	Count uint64

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
}

// DefaultBuckets are the histogram bucket boundaries used when none are
// configured, sized for request latencies in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Config configures a Registry.
type Config struct {
	// Buckets are the upper boundaries for all histogram series, in
	// increasing order. Fixed at construction; immutable thereafter.
	// Default: DefaultBuckets.
	Buckets []float64
}

// series is one registered metric identity. Counters and gauges use value;
// histograms use hcounts/hsum/hcount. All fields are written atomically so a
// series is never locked.
type series struct {
	name   string
	kind   Kind
	labels []Label

	value atomicFloat64

	hcounts []atomic.Uint64
	hsum    atomicFloat64
	hcount  atomic.Uint64
}

// Registry owns the mapping from metric identity to current value.
//
// Contract:
// - Concurrency: all methods are safe for concurrent use.
// - Writes on distinct identities do not contend.
// - Snapshot is safe to call concurrently with any writer.
type Registry struct {
	bounds []float64
	start  time.Time
	now    func() time.Time

	mu     sync.RWMutex
	series map[string]*series
	kinds  map[string]Kind
	order  []string
}

// NewRegistry creates an empty registry. Bucket boundaries are fixed for the
// registry's lifetime.
func NewRegistry(config ...Config) *Registry {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets
	}

	bounds := make([]float64, len(cfg.Buckets))
	copy(bounds, cfg.Buckets)
	sort.Float64s(bounds)

	r := &Registry{
		bounds: bounds,
		now:    time.Now,
		series: make(map[string]*series),
		kinds:  make(map[string]Kind),
	}
	r.start = r.now()
	return r
}

// Bounds returns the histogram bucket boundaries.
func (r *Registry) Bounds() []float64 {
	bounds := make([]float64, len(r.bounds))
	copy(bounds, r.bounds)
	return bounds
}

// StartTime returns when the registry was created. Exporters use it as the
// cumulative start timestamp.
func (r *Registry) StartTime() time.Time {
	return r.start
}

// IncrCounter atomically adds delta to the counter identified by name and
// labels, registering it on first use. A negative delta reports
// ErrInvalidDelta and leaves the counter unchanged.
func (r *Registry) IncrCounter(name string, labels []Label, delta float64) error {
	if delta < 0 {
		return ErrInvalidDelta
	}
	s, err := r.lookup(name, labels, KindCounter)
	if err != nil {
		return err
	}
	s.value.Add(delta)
	return nil
}

// SetGauge atomically overwrites the gauge identified by name and labels,
// registering it on first use.
func (r *Registry) SetGauge(name string, labels []Label, value float64) error {
	s, err := r.lookup(name, labels, KindGauge)
	if err != nil {
		return err
	}
	s.value.Store(value)
	return nil
}

// ObserveHistogram records value into the histogram identified by name and
// labels, registering it on first use. Values above the highest configured
// bound fall into the implicit +Inf bucket; observation never fails for any
// finite value.
func (r *Registry) ObserveHistogram(name string, labels []Label, value float64) error {
	s, err := r.lookup(name, labels, KindHistogram)
	if err != nil {
		return err
	}

	// Buckets use upper-inclusive bounds: the first bound >= value.
	idx := sort.SearchFloat64s(r.bounds, value)
	s.hcounts[idx].Add(1)
	s.hsum.Add(value)
	s.hcount.Add(1)
	return nil
}

// Snapshot returns the current value of every registered series in
// registration order. Each sample is internally consistent; the snapshot does
// not freeze the registry across series.
func (r *Registry) Snapshot() []Sample {
	r.mu.RLock()
	ordered := make([]*series, 0, len(r.order))
	for _, key := range r.order {
		ordered = append(ordered, r.series[key])
	}
	r.mu.RUnlock()

	ts := r.now()
	samples := make([]Sample, 0, len(ordered))
	for _, s := range ordered {
		sample := Sample{
			Name:      s.name,
			Kind:      s.kind,
			Labels:    s.labels,
			Timestamp: ts,
		}
		switch s.kind {
		case KindHistogram:
			buckets := make([]uint64, len(s.hcounts))
			for i := range s.hcounts {
				buckets[i] = s.hcounts[i].Load()
			}
			sample.Bounds = r.Bounds()
			sample.Buckets = buckets
			sample.Sum = s.hsum.Load()
			sample.Count = s.hcount.Load()
		default:
			sample.Value = s.value.Load()
		}
		samples = append(samples, sample)
	}
	return samples
}

// lookup returns the series for (name, labels), creating it on first use.
// The fast path is a read-locked map hit; registration takes the write lock
// with a double check. A name holds exactly one kind across all of its label
// sets, so every series of one name exports as a single metric family.
func (r *Registry) lookup(name string, labels []Label, kind Kind) (*series, error) {
	canonical := canonicalLabels(labels)
	key := identityKey(name, canonical)

	r.mu.RLock()
	s, ok := r.series[key]
	r.mu.RUnlock()
	if ok {
		if s.kind != kind {
			return nil, ErrKindMismatch
		}
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.series[key]; ok {
		if s.kind != kind {
			return nil, ErrKindMismatch
		}
		return s, nil
	}
	if existing, ok := r.kinds[name]; ok && existing != kind {
		return nil, ErrKindMismatch
	}

	s = &series{
		name:   name,
		kind:   kind,
		labels: canonical,
	}
	if kind == KindHistogram {
		s.hcounts = make([]atomic.Uint64, len(r.bounds)+1)
	}
	r.series[key] = s
	r.kinds[name] = kind
	r.order = append(r.order, key)
	return s, nil
}

// canonicalLabels returns a key-sorted copy of labels so that identity does
// not depend on argument order.
func canonicalLabels(labels []Label) []Label {
	canonical := make([]Label, len(labels))
	copy(canonical, labels)
	sort.SliceStable(canonical, func(i, j int) bool {
		return canonical[i].Key < canonical[j].Key
	})
	return canonical
}

// identityKey builds the map key for a metric identity.
func identityKey(name string, canonical []Label) string {
	var b strings.Builder
	b.WriteString(name)
	for _, l := range canonical {
		b.WriteByte(0x1f)
		b.WriteString(l.Key)
		b.WriteByte(0x1e)
		b.WriteString(l.Value)
	}
	return b.String()
}
