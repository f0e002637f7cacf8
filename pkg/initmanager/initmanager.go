// Package initmanager implements the async start-up barrier spec.md §4.1
// describes: register a fan-out of InitTargets while NotInitialized, call
// Initialize exactly once, and get exactly one completion callback after
// every target has called back — or immediately, if none were registered.
package initmanager

import "sync"

// State is the InitManager's lifecycle, monotonically advancing.
type State int

const (
	NotInitialized State = iota
	Initializing
	Initialized
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NotInitialized"
	case Initializing:
		return "Initializing"
	case Initialized:
		return "Initialized"
	default:
		return "Unknown"
	}
}

// Target is anything with an async Initialize that must complete before the
// server starts accepting traffic — a cluster's first-round DNS or EDS
// resolution, in Envoy's terms. Targets have no failure channel: a target
// that cannot progress must retry internally or cause the process to exit.
type Target interface {
	// Name identifies the target for logging and duplicate detection.
	Name() string
	// Initialize begins async work and calls done when (and only when) it
	// has completed. done must be called exactly once.
	Initialize(done func())
}

// Manager is the barrier. RegisterTarget is only valid in NotInitialized;
// Initialize is called exactly once. Target completion callbacks may arrive
// concurrently from the manager's perspective (spec.md §4.1: "completion
// order is whatever order targets call back"); the mutex below only
// serializes the manager's own bookkeeping, it does not impose an ordering
// on targets.
type Manager struct {
	mu      sync.Mutex
	state   State
	targets []Target
	pending map[string]struct{}
	done    func()
}

// New creates a Manager in state NotInitialized.
func New() *Manager {
	return &Manager{
		state:   NotInitialized,
		pending: make(map[string]struct{}),
	}
}

// State returns the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RegisterTarget adds target to the pending set. Panics if the manager has
// already left NotInitialized — spec.md §4.1 specifies this as an
// assertion failure, not a recoverable error, since it can only happen from
// a programming mistake in the caller.
func (m *Manager) RegisterTarget(target Target) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != NotInitialized {
		panic("initmanager: RegisterTarget called after Initialize")
	}
	name := target.Name()
	if _, exists := m.pending[name]; exists {
		panic("initmanager: duplicate target name " + name)
	}
	m.pending[name] = struct{}{}
	m.targets = append(m.targets, target)
}

// Initialize stores done, transitions NotInitialized -> Initializing, and
// calls Initialize on every registered target. When the pending set
// empties — including synchronously, if it was empty to begin with — the
// manager transitions to Initialized and calls done exactly once.
//
// Must be called exactly once.
func (m *Manager) Initialize(done func()) {
	m.mu.Lock()
	if m.state != NotInitialized {
		m.mu.Unlock()
		panic("initmanager: Initialize called more than once")
	}
	m.state = Initializing
	m.done = done
	targets := m.targets
	empty := len(m.pending) == 0
	m.mu.Unlock()

	if empty {
		m.complete()
		return
	}

	for _, t := range targets {
		target := t
		target.Initialize(func() {
			m.targetDone(target.Name())
		})
	}
}

func (m *Manager) targetDone(name string) {
	m.mu.Lock()
	if _, ok := m.pending[name]; !ok {
		m.mu.Unlock()
		// Already removed: either a duplicate callback (contract
		// violation by the target) or it was never registered.
		return
	}
	delete(m.pending, name)
	empty := len(m.pending) == 0
	m.mu.Unlock()

	if empty {
		m.complete()
	}
}

func (m *Manager) complete() {
	m.mu.Lock()
	if m.state == Initialized {
		m.mu.Unlock()
		return
	}
	m.state = Initialized
	done := m.done
	m.mu.Unlock()

	if done != nil {
		done()
	}
}

// PendingCount returns how many registered targets have not yet called
// back. Diagnostic only.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
