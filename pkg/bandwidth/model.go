package bandwidth

import (
	"container/list"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"topology-aware-planner/core/pkg/placement"
	"topology-aware-planner/core/pkg/topology"
)

// Sample is one observed transfer measurement between two workers.
// Samples are append-only; they age out of the active window, they are
// never mutated or individually deleted.
type Sample struct {
	Source    int
	Dest      int
	Bytes     int64
	Elapsed   time.Duration
	DataClass string
	Timestamp time.Time
}

// Estimate is the quantile summary for an ordered worker pair, in bytes
// per second. SampleCount is zero when the figures come from the
// topology-tier default.
type Estimate struct {
	P25         float64 `json:"p25"`
	P50         float64 `json:"p50"`
	P75         float64 `json:"p75"`
	SampleCount int     `json:"sampleCount"`
}

// Config bounds the sample store.
type Config struct {
	// WindowSize is the maximum samples retained per key.
	WindowSize int
	// MaxSampleAge expires samples older than this from the window.
	MaxSampleAge time.Duration
	// MinBytes discards transfers too small to measure bandwidth:
	// below this size the figure is latency-dominated.
	MinBytes int64
	// MaxKeys is the maximum distinct (source, dest, class) keys kept;
	// the least recently updated key is evicted when exceeded. Data
	// classes arrive from external reporters, so the key space must be
	// bounded here rather than trusted.
	MaxKeys int
}

// DefaultConfig matches typical transfer-report cadence: a minute's worth
// of recent history, ignoring sub-64KiB control traffic.
func DefaultConfig() Config {
	return Config{
		WindowSize:   64,
		MaxSampleAge: 5 * time.Minute,
		MinBytes:     64 << 10,
		MaxKeys:      1024,
	}
}

type key struct {
	source int
	dest   int
	class  string
}

type observation struct {
	bytesPerSec float64
	timestamp   time.Time
}

// window is the bounded recent history for one key. Each window has its
// own lock so ingestion for one pair never blocks queries for another.
type window struct {
	mu      sync.Mutex
	samples []observation
}

// Model maintains per-pair bandwidth windows fed by external transfer
// reports and answers quantile queries, falling back to topology-derived
// defaults for cold keys. Safe for concurrent use.
type Model struct {
	desc   *topology.Descriptor
	nodeOf map[int]int
	cfg    Config

	mu      sync.RWMutex
	windows map[key]*window
	lru     *list.List // least recently updated key tracking
	lruMap  map[key]*list.Element

	dropped atomic.Int64
}

// NewModel builds a model over the planned workers. The worker set fixes
// the id→node mapping used to resolve cold-start defaults and to reject
// reports naming workers this bootstrap never planned.
func NewModel(desc *topology.Descriptor, workers []placement.WorkerSpec, cfg Config) *Model {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.MaxSampleAge <= 0 {
		cfg.MaxSampleAge = def.MaxSampleAge
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = def.MaxKeys
	}
	nodeOf := make(map[int]int, len(workers))
	for _, w := range workers {
		nodeOf[w.ID] = w.Node
	}
	return &Model{
		desc:    desc,
		nodeOf:  nodeOf,
		cfg:     cfg,
		windows: make(map[key]*window),
		lru:     list.New(),
		lruMap:  make(map[key]*list.Element),
	}
}

// Record ingests one sample. Malformed, undersized, or unattributable
// samples are dropped and counted, never surfaced as an error:
// destabilizing the reporting sender over a bad measurement is worse
// than losing the point.
func (m *Model) Record(s Sample) {
	if s.Bytes <= 0 || s.Elapsed <= 0 {
		m.drop(dropReasonMalformed)
		klog.V(4).Infof("Dropped malformed sample %d->%d: bytes=%d elapsed=%v",
			s.Source, s.Dest, s.Bytes, s.Elapsed)
		return
	}
	if s.Bytes < m.cfg.MinBytes {
		m.drop(dropReasonUndersized)
		klog.V(4).Infof("Dropped undersized sample %d->%d: %d bytes < %d",
			s.Source, s.Dest, s.Bytes, m.cfg.MinBytes)
		return
	}
	if _, ok := m.nodeOf[s.Source]; !ok {
		m.drop(dropReasonUnknownWorker)
		klog.V(4).Infof("Dropped sample from unknown worker %d", s.Source)
		return
	}
	if _, ok := m.nodeOf[s.Dest]; !ok {
		m.drop(dropReasonUnknownWorker)
		klog.V(4).Infof("Dropped sample to unknown worker %d", s.Dest)
		return
	}

	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	obs := observation{
		bytesPerSec: float64(s.Bytes) / s.Elapsed.Seconds(),
		timestamp:   s.Timestamp,
	}

	m.appendTo(key{s.Source, s.Dest, s.DataClass}, obs)
	if s.DataClass != "" {
		// Tagged samples also feed the pair-level window so untagged
		// queries see all traffic for the pair.
		m.appendTo(key{s.Source, s.Dest, ""}, obs)
	}
	samplesIngested.Inc()
}

func (m *Model) drop(reason string) {
	m.dropped.Add(1)
	samplesDropped.WithLabelValues(reason).Inc()
}

func (m *Model) appendTo(k key, obs observation) {
	m.mu.Lock()
	w := m.windows[k]
	if w == nil {
		if len(m.windows) >= m.cfg.MaxKeys {
			m.evictOldestLocked()
		}
		w = &window{}
		m.windows[k] = w
		m.lruMap[k] = m.lru.PushFront(k)
	} else if elem, ok := m.lruMap[k]; ok {
		m.lru.MoveToFront(elem)
	}
	m.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, obs)
	// Oldest-first eviction keeps the window bounded; overload is lossy
	// by design, never an error.
	if excess := len(w.samples) - m.cfg.WindowSize; excess > 0 {
		w.samples = append(w.samples[:0], w.samples[excess:]...)
	}
}

// evictOldestLocked removes the least recently updated key. Callers hold
// m.mu.
func (m *Model) evictOldestLocked() {
	elem := m.lru.Back()
	if elem == nil {
		return
	}
	k := elem.Value.(key)
	m.removeKeyLocked(k, elem)
	klog.V(3).Infof("Evicted bandwidth window %d->%d class=%q", k.source, k.dest, k.class)
}

func (m *Model) removeKeyLocked(k key, elem *list.Element) {
	m.lru.Remove(elem)
	delete(m.lruMap, k)
	delete(m.windows, k)
}

// Estimate answers a quantile query for the ordered (source, dest)
// worker pair, optionally narrowed to a data class. A class-specific
// query with no class samples falls back to the pair's untagged window;
// a fully cold key falls back to the deterministic topology-tier default.
func (m *Model) Estimate(source, dest int, dataClass string) Estimate {
	start := time.Now()
	defer func() {
		estimateLatency.Observe(time.Since(start).Seconds())
	}()

	if est, ok := m.estimateFromWindow(key{source, dest, dataClass}); ok {
		return est
	}
	if dataClass != "" {
		if est, ok := m.estimateFromWindow(key{source, dest, ""}); ok {
			return est
		}
	}
	return m.defaultEstimate(source, dest)
}

func (m *Model) estimateFromWindow(k key) (Estimate, bool) {
	m.mu.RLock()
	w := m.windows[k]
	m.mu.RUnlock()
	if w == nil {
		return Estimate{}, false
	}

	cutoff := time.Now().Add(-m.cfg.MaxSampleAge)

	w.mu.Lock()
	// Age out expired samples in place; a sample aged out mid-query
	// simply isn't counted.
	live := w.samples[:0]
	for _, obs := range w.samples {
		if obs.timestamp.After(cutoff) {
			live = append(live, obs)
		}
	}
	w.samples = live
	values := make([]float64, len(live))
	for i, obs := range live {
		values[i] = obs.bytesPerSec
	}
	w.mu.Unlock()

	if len(values) == 0 {
		m.dropEmptyWindow(k, w)
		return Estimate{}, false
	}
	sort.Float64s(values)
	return Estimate{
		P25:         quantile(values, 0.25),
		P50:         quantile(values, 0.50),
		P75:         quantile(values, 0.75),
		SampleCount: len(values),
	}, true
}

// dropEmptyWindow removes a key whose samples have all aged out so
// fully-cold keys don't linger in the map. Re-checked under both locks:
// a sample may have landed between the age-out and this cleanup.
func (m *Model) dropEmptyWindow(k key, w *window) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windows[k] != w {
		return
	}
	w.mu.Lock()
	empty := len(w.samples) == 0
	w.mu.Unlock()
	if !empty {
		return
	}
	if elem, ok := m.lruMap[k]; ok {
		m.removeKeyLocked(k, elem)
	}
}

// defaultEstimate resolves a cold key through the link-class table. A
// worker id outside this bootstrap's placement resolves to the
// external-fabric floor rather than an error: estimate queries are total.
func (m *Model) defaultEstimate(source, dest int) Estimate {
	coldStartQueries.Inc()

	lc := topology.LinkExternalFabric
	srcNode, srcOK := m.nodeOf[source]
	dstNode, dstOK := m.nodeOf[dest]
	if srcOK && dstOK {
		if got, err := m.desc.LinkClass(srcNode, dstNode); err == nil {
			lc = got
		}
	} else {
		klog.V(4).Infof("Cold-start query for unknown worker pair %d->%d, assuming %s",
			source, dest, lc)
	}

	bw := NominalBandwidth(lc)
	return Estimate{P25: bw, P50: bw, P75: bw, SampleCount: 0}
}

// DroppedSamples reports how many samples were rejected at ingestion.
func (m *Model) DroppedSamples() int64 {
	return m.dropped.Load()
}

// KeyCount reports how many distinct sample windows are live.
func (m *Model) KeyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}

// quantile computes the p-th sample quantile of sorted values with
// linear interpolation between order statistics.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
