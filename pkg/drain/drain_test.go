package drain

import (
	"testing"
	"time"
)

func TestManager_BeforeStart(t *testing.T) {
	m := New(10 * time.Second)
	defer m.Close()

	for i := 0; i < 100; i++ {
		if m.DrainClose() {
			t.Fatal("DrainClose returned true before StartDrainSequence")
		}
	}
	if m.Draining() {
		t.Fatal("Draining() true before StartDrainSequence")
	}
}

func TestManager_StartIdempotent(t *testing.T) {
	m := New(time.Hour)
	defer m.Close()

	m.StartDrainSequence()
	first := m.t0
	time.Sleep(5 * time.Millisecond)
	m.StartDrainSequence()

	if !m.t0.Equal(first) {
		t.Error("second StartDrainSequence call changed T0")
	}
}

func TestManager_RampMonotonicity(t *testing.T) {
	// D=200ms; sample the empirical drain rate at roughly D/4 and 3D/4 and
	// confirm it rises, matching min(1, (t-T0)/D).
	d := 200 * time.Millisecond
	m := New(d)
	defer m.Close()

	m.StartDrainSequence()

	sampleRate := func() float64 {
		const n = 20000
		hits := 0
		for i := 0; i < n; i++ {
			if m.DrainClose() {
				hits++
			}
		}
		return float64(hits) / float64(n)
	}

	time.Sleep(d / 4)
	early := sampleRate()

	time.Sleep(d / 2)
	late := sampleRate()

	if late <= early {
		t.Fatalf("expected drain rate to rise over time: early=%.3f late=%.3f", early, late)
	}
}

func TestManager_RampReachesOne(t *testing.T) {
	d := 30 * time.Millisecond
	m := New(d)
	defer m.Close()

	m.StartDrainSequence()
	time.Sleep(2 * d)

	for i := 0; i < 50; i++ {
		if !m.DrainClose() {
			t.Fatal("expected DrainClose to always return true well past the horizon")
		}
	}
}

func TestManager_ZeroHorizonAlwaysDrainsOnceStarted(t *testing.T) {
	m := New(0)
	defer m.Close()
	m.StartDrainSequence()
	if !m.DrainClose() {
		t.Fatal("expected immediate drain=true with a zero horizon")
	}
}

func TestManager_StartParentShutdownSequence(t *testing.T) {
	m := New(time.Second)
	defer m.Close()

	done := make(chan struct{})
	m.StartParentShutdownSequence(20*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("parent shutdown callback never fired")
	}
}
