// Package drain implements the probabilistic graceful-close gate spec.md
// §4.2 describes: a linearly ramping probability of "close me now", polled
// by whoever owns a connection, instead of a central traversal of every live
// connection at shutdown time.
package drain

import (
	"math/rand"
	"sync"
	"time"

	"github.com/heliosproxy/helios/pkg/sched"
)

// Manager is the DrainManager. Zero value is not usable; use New.
type Manager struct {
	mu        sync.Mutex
	t0        time.Time // zero until startDrainSequence
	horizon   time.Duration
	scheduler *sched.Scheduler
	rand      *rand.Rand
}

// New creates a Manager with drain horizon d — the time over which the
// close probability ramps from 0 to 1 once draining starts.
func New(d time.Duration) *Manager {
	return &Manager{
		horizon:   d,
		scheduler: sched.New(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DrainClose reports whether the caller should close the connection it is
// holding right now. Returns false until StartDrainSequence has been
// called; afterward, true with probability min(1, (now-T0)/D).
func (m *Manager) DrainClose() bool {
	m.mu.Lock()
	t0 := m.t0
	horizon := m.horizon
	m.mu.Unlock()

	if t0.IsZero() {
		return false
	}
	if horizon <= 0 {
		return true
	}

	elapsed := time.Since(t0)
	p := float64(elapsed) / float64(horizon)
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}

	m.mu.Lock()
	roll := m.rand.Float64()
	m.mu.Unlock()
	return roll < p
}

// StartDrainSequence records T0 = now. Idempotent: calls after the first
// are no-ops, so repeated drain triggers (SIGTERM racing with an admin
// /quitquitquit, say) don't reset the ramp.
func (m *Manager) StartDrainSequence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.t0.IsZero() {
		m.t0 = time.Now()
	}
}

// Draining reports whether StartDrainSequence has been called.
func (m *Manager) Draining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.t0.IsZero()
}

// StartParentShutdownSequence schedules onTimeout to run once, after
// parentShutdownTimeout. It is only meaningful on a hot-restart successor
// process: onTimeout is expected to tell the hot-restart subsystem to
// terminate the parent, bounding how long the parent is allowed to linger
// after handing off its listen sockets.
func (m *Manager) StartParentShutdownSequence(parentShutdownTimeout time.Duration, onTimeout func()) {
	m.scheduler.After(parentShutdownTimeout, onTimeout)
}

// Close releases scheduler resources. Call once the manager is no longer
// needed (process shutdown).
func (m *Manager) Close() {
	m.scheduler.Stop()
}
