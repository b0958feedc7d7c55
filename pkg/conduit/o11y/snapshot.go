package o11y

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsSnapshot is a point-in-time copy of every metric a SnapshotProvider
// has recorded.
type MetricsSnapshot struct {
	Timestamp  time.Time            `json:"timestamp"`
	Counters   map[string]int64     `json:"counters"`
	Histograms map[string][]float64 `json:"histograms"`
	Gauges     map[string]float64   `json:"gauges"`
}

// SnapshotProvider is an in-memory MetricsProvider. It needs no external
// collector: callers read accumulated values back with Snapshot. Useful for
// tests and for one-shot tools that print stats on exit.
type SnapshotProvider struct {
	counters   sync.Map // map[string]*snapshotCounter
	histograms sync.Map // map[string]*snapshotHistogram
	gauges     sync.Map // map[string]*snapshotGauge
}

// NewSnapshotProvider creates an empty in-memory metrics provider.
func NewSnapshotProvider() *SnapshotProvider {
	return &SnapshotProvider{}
}

func (s *SnapshotProvider) Counter(name string) Counter {
	if existing, ok := s.counters.Load(name); ok {
		return existing.(*snapshotCounter)
	}

	actual, _ := s.counters.LoadOrStore(name, &snapshotCounter{})
	return actual.(*snapshotCounter)
}

func (s *SnapshotProvider) Histogram(name string) Histogram {
	if existing, ok := s.histograms.Load(name); ok {
		return existing.(*snapshotHistogram)
	}

	actual, _ := s.histograms.LoadOrStore(name, &snapshotHistogram{})
	return actual.(*snapshotHistogram)
}

func (s *SnapshotProvider) Gauge(name string) Gauge {
	if existing, ok := s.gauges.Load(name); ok {
		return existing.(*snapshotGauge)
	}

	actual, _ := s.gauges.LoadOrStore(name, &snapshotGauge{})
	return actual.(*snapshotGauge)
}

// Snapshot returns a copy of all recorded metrics.
func (s *SnapshotProvider) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp:  time.Now(),
		Counters:   make(map[string]int64),
		Histograms: make(map[string][]float64),
		Gauges:     make(map[string]float64),
	}

	s.counters.Range(func(key, value interface{}) bool {
		counter := value.(*snapshotCounter)
		snapshot.Counters[key.(string)] = atomic.LoadInt64(&counter.value)
		return true
	})

	s.histograms.Range(func(key, value interface{}) bool {
		histogram := value.(*snapshotHistogram)
		histogram.mu.RLock()
		values := make([]float64, len(histogram.values))
		copy(values, histogram.values)
		histogram.mu.RUnlock()
		snapshot.Histograms[key.(string)] = values
		return true
	})

	s.gauges.Range(func(key, value interface{}) bool {
		gauge := value.(*snapshotGauge)
		gauge.mu.RLock()
		snapshot.Gauges[key.(string)] = gauge.value
		gauge.mu.RUnlock()
		return true
	})

	return snapshot
}

type snapshotCounter struct {
	value int64
}

func (c *snapshotCounter) Add(ctx context.Context, value int64, labels ...Label) {
	atomic.AddInt64(&c.value, value)
}

type snapshotHistogram struct {
	mu     sync.RWMutex
	values []float64
}

func (h *snapshotHistogram) Record(ctx context.Context, value float64, labels ...Label) {
	h.mu.Lock()
	h.values = append(h.values, value)
	h.mu.Unlock()
}

type snapshotGauge struct {
	mu    sync.RWMutex
	value float64
}

func (g *snapshotGauge) Set(ctx context.Context, value float64, labels ...Label) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}
