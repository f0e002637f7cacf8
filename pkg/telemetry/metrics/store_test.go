package metrics

import "testing"

type recordingSink struct {
	counters map[string]uint64
	gauges   map[string]int64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{counters: map[string]uint64{}, gauges: map[string]int64{}}
}

func (s *recordingSink) FlushCounter(name string, delta uint64) { s.counters[name] = delta }
func (s *recordingSink) FlushGauge(name string, value int64)    { s.gauges[name] = value }

func TestCounter_LatchReturnsDeltaSinceLastCall(t *testing.T) {
	s := NewStore("helios", "test")
	c := s.Counter("requests_total")

	c.Add(5)
	if got := c.Latch(); got != 5 {
		t.Fatalf("first Latch() = %d, want 5", got)
	}
	if got := c.Latch(); got != 0 {
		t.Fatalf("second Latch() with no intervening Add = %d, want 0", got)
	}
	c.Add(3)
	if got := c.Latch(); got != 3 {
		t.Fatalf("third Latch() = %d, want 3", got)
	}
	if got := c.Value(); got != 8 {
		t.Fatalf("Value() = %d, want 8 (cumulative)", got)
	}
}

func TestStore_FlushToSkipsUnusedStats(t *testing.T) {
	s := NewStore("helios", "test")
	used := s.Counter("used_counter")
	_ = s.Counter("unused_counter") // registered via get-or-create, never touched
	used.Add(10)

	usedGauge := s.Gauge("used_gauge")
	_ = s.Gauge("unused_gauge")
	usedGauge.Set(42)

	sink := newRecordingSink()
	s.FlushTo(sink)

	if _, ok := sink.counters["unused_counter"]; ok {
		t.Fatal("unused counter should not have been flushed")
	}
	if got, ok := sink.counters["used_counter"]; !ok || got != 10 {
		t.Fatalf("used_counter flushed as %d (ok=%v), want 10", got, ok)
	}
	if _, ok := sink.gauges["unused_gauge"]; ok {
		t.Fatal("unused gauge should not have been flushed")
	}
	if got, ok := sink.gauges["used_gauge"]; !ok || got != 42 {
		t.Fatalf("used_gauge flushed as %d (ok=%v), want 42", got, ok)
	}
}

func TestStore_CounterGetOrCreateReturnsSameInstance(t *testing.T) {
	s := NewStore("helios", "test")
	a := s.Counter("x")
	b := s.Counter("x")
	a.Inc()
	if b.Value() != 1 {
		t.Fatalf("expected get-or-create to return the same *Counter, got independent value %d", b.Value())
	}
}

func TestStore_WatchdogCountersWiring(t *testing.T) {
	s := NewStore("helios", "test")
	s.IncWatchdogMiss()
	s.IncWatchdogMiss()
	s.IncWatchdogMegaMiss()

	if got := s.Counter("watchdog_miss").Value(); got != 2 {
		t.Fatalf("watchdog_miss = %d, want 2", got)
	}
	if got := s.Counter("watchdog_mega_miss").Value(); got != 1 {
		t.Fatalf("watchdog_mega_miss = %d, want 1", got)
	}
}
