package initmanager

import (
	"sync"
	"sync/atomic"
	"testing"
)

type fakeTarget struct {
	name string
	cb   func()
}

func (f *fakeTarget) Name() string { return f.name }
func (f *fakeTarget) Initialize(done func()) {
	f.cb = done
}

func TestManager_EmptyFiresSynchronously(t *testing.T) {
	m := New()

	var doneCalled bool
	m.Initialize(func() { doneCalled = true })

	if !doneCalled {
		t.Fatal("expected done to be called synchronously for an empty target set")
	}
	if m.State() != Initialized {
		t.Errorf("State() = %v, want Initialized", m.State())
	}
}

func TestManager_BarrierFiresOnceAfterAll(t *testing.T) {
	m := New()

	a := &fakeTarget{name: "a"}
	b := &fakeTarget{name: "b"}
	m.RegisterTarget(a)
	m.RegisterTarget(b)

	var doneCount atomic.Int32
	m.Initialize(func() { doneCount.Add(1) })

	if m.State() != Initializing {
		t.Fatalf("State() = %v, want Initializing before targets complete", m.State())
	}
	if doneCount.Load() != 0 {
		t.Fatal("done fired before any target completed")
	}

	a.cb()
	if doneCount.Load() != 0 {
		t.Fatal("done fired after only one of two targets completed")
	}

	b.cb()
	if doneCount.Load() != 1 {
		t.Fatalf("doneCount = %d, want exactly 1", doneCount.Load())
	}
	if m.State() != Initialized {
		t.Errorf("State() = %v, want Initialized", m.State())
	}
}

func TestManager_CallbackOrderIrrelevant(t *testing.T) {
	m := New()
	a := &fakeTarget{name: "a"}
	b := &fakeTarget{name: "b"}
	m.RegisterTarget(a)
	m.RegisterTarget(b)

	var doneCount atomic.Int32
	m.Initialize(func() { doneCount.Add(1) })

	// Reverse order from the previous test.
	b.cb()
	a.cb()

	if doneCount.Load() != 1 {
		t.Fatalf("doneCount = %d, want exactly 1 regardless of callback order", doneCount.Load())
	}
}

func TestManager_ConcurrentCallbacksFireDoneExactlyOnce(t *testing.T) {
	m := New()

	const n = 50
	targets := make([]*fakeTarget, n)
	for i := range targets {
		targets[i] = &fakeTarget{name: string(rune('a' + i))}
		m.RegisterTarget(targets[i])
	}

	var doneCount atomic.Int32
	m.Initialize(func() { doneCount.Add(1) })

	var wg sync.WaitGroup
	for _, target := range targets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()
			target.cb()
		}()
	}
	wg.Wait()

	if doneCount.Load() != 1 {
		t.Fatalf("doneCount = %d, want exactly 1", doneCount.Load())
	}
}

func TestManager_RegisterAfterInitializePanics(t *testing.T) {
	m := New()
	m.Initialize(func() {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering a target after Initialize")
		}
	}()
	m.RegisterTarget(&fakeTarget{name: "late"})
}

func TestManager_DoubleInitializePanics(t *testing.T) {
	m := New()
	m.Initialize(func() {})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Initialize twice")
		}
	}()
	m.Initialize(func() {})
}
