// Package metrics is the stats store spec.md §4.6 describes: counters and
// gauges with used()/latch() semantics for the stats-flush timer, backed by
// Prometheus for local scraping and an optional StatSink for the external
// push path (statsd).
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter is a monotonically increasing stat. Value() is the cumulative
// total; Latch() returns the delta since the last Latch() call, the
// semantics spec.md §4.6's stats-flush timer needs to report per-interval
// deltas to an external sink without that sink having to track state
// itself.
type Counter struct {
	pc    prometheus.Counter
	value atomic.Uint64
	last  atomic.Uint64
	used  atomic.Bool
}

func (c *Counter) Add(delta uint64) {
	if delta == 0 {
		return
	}
	c.value.Add(delta)
	c.used.Store(true)
	c.pc.Add(float64(delta))
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Value() uint64 { return c.value.Load() }

// Used reports whether this counter has ever been incremented. A stat that
// was only ever registered (get-or-create on first lookup) but never
// touched is skipped by FlushTo, matching spec.md's "skipped if used()
// ==false".
func (c *Counter) Used() bool { return c.used.Load() }

// Latch returns the delta since the previous Latch call and resets the
// baseline.
func (c *Counter) Latch() uint64 {
	cur := c.value.Load()
	prev := c.last.Swap(cur)
	return cur - prev
}

// Gauge is a point-in-time stat that can move in either direction.
type Gauge struct {
	pg    prometheus.Gauge
	value atomic.Int64
	used  atomic.Bool
}

func (g *Gauge) Set(v int64) {
	g.value.Store(v)
	g.used.Store(true)
	g.pg.Set(float64(v))
}

func (g *Gauge) Add(delta int64) {
	g.value.Add(delta)
	g.used.Store(true)
	g.pg.Add(float64(delta))
}

func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) Used() bool { return g.used.Load() }

// Store is the process-wide stats registry: get-or-create Counter/Gauge by
// name, a Prometheus registry for local scraping, and FlushTo for pushing
// latched deltas to an external StatSink.
type Store struct {
	namespace string
	subsystem string
	registry  *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// NewStore creates a Store backed by a fresh Prometheus registry.
func NewStore(namespace, subsystem string) *Store {
	return &Store{
		namespace: namespace,
		subsystem: subsystem,
		registry:  prometheus.NewRegistry(),
		counters:  make(map[string]*Counter),
		gauges:    make(map[string]*Gauge),
	}
}

// Registry exposes the Prometheus registry backing this store, for mounting
// behind the admin HTTP /stats endpoint (an external collaborator).
func (s *Store) Registry() *prometheus.Registry {
	return s.registry
}

// Counter returns the named counter, registering it with Prometheus on
// first use.
func (s *Store) Counter(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[name]; ok {
		return c
	}
	pc := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: s.namespace,
		Subsystem: s.subsystem,
		Name:      name,
	})
	s.registry.MustRegister(pc)
	c := &Counter{pc: pc}
	s.counters[name] = c
	return c
}

// Gauge returns the named gauge, registering it with Prometheus on first
// use.
func (s *Store) Gauge(name string) *Gauge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gauges[name]; ok {
		return g
	}
	pg := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Subsystem: s.subsystem,
		Name:      name,
	})
	s.registry.MustRegister(pg)
	g := &Gauge{pg: pg}
	s.gauges[name] = g
	return g
}

// FlushTo pushes every used counter's latched delta and every used gauge's
// current value to sink, per spec.md §4.6's stats-flush timer callback.
func (s *Store) FlushTo(sink StatSink) {
	s.mu.Lock()
	counters := make(map[string]*Counter, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	gauges := make(map[string]*Gauge, len(s.gauges))
	for k, v := range s.gauges {
		gauges[k] = v
	}
	s.mu.Unlock()

	for name, c := range counters {
		if !c.Used() {
			continue
		}
		sink.FlushCounter(name, c.Latch())
	}
	for name, g := range gauges {
		if !g.Used() {
			continue
		}
		sink.FlushGauge(name, g.Value())
	}
}

// IncWatchdogMiss and IncWatchdogMegaMiss satisfy pkg/watchdog's Counters
// interface, wiring GuardDog's debounced miss/mega-miss signals directly
// into this store under the names spec.md §4.3 implies.
func (s *Store) IncWatchdogMiss() { s.Counter("watchdog_miss").Inc() }

func (s *Store) IncWatchdogMegaMiss() { s.Counter("watchdog_mega_miss").Inc() }
