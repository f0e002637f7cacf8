package watchdog

import (
	"sync"
	"syscall"
	"time"

	"github.com/heliosproxy/helios/pkg/sched"
)

// Counters is the subset of the stats store GuardDog needs. Kept narrow so
// this package doesn't depend on pkg/telemetry/metrics's full Store type.
type Counters interface {
	IncWatchdogMiss()
	IncWatchdogMegaMiss()
}

// Config carries the tunables spec.md §4.3 names.
type Config struct {
	MissMargin       time.Duration
	MegaMissMargin   time.Duration
	KillTimeout      time.Duration // 0 disables single-thread kill
	MultikillTimeout time.Duration // 0 disables multikill
	Counters         Counters
	// Kill is called to abort the process. Defaults to raising SIGABRT
	// against the current process so a core dump captures the stuck
	// thread. Overridable in tests.
	Kill func(reason string)
}

// GuardDog runs its own goroutine, polling every registered WatchDog.
type GuardDog struct {
	mu     sync.Mutex
	dogs   map[ThreadID]*WatchDog
	nextID uint64
	cfg    Config

	scheduler *sched.Scheduler
	timer     *sched.Timer
}

// New creates a GuardDog and immediately starts its tick loop. The loop
// period is min(miss_margin, megamiss_margin)/2, per spec.md §4.3.
func New(cfg Config) *GuardDog {
	if cfg.Kill == nil {
		cfg.Kill = defaultKill
	}
	g := &GuardDog{
		dogs:      make(map[ThreadID]*WatchDog),
		cfg:       cfg,
		scheduler: sched.New(),
	}
	g.timer = g.scheduler.Every(g.tickPeriod(), g.tick)
	return g
}

func (g *GuardDog) tickPeriod() time.Duration {
	margin := g.cfg.MissMargin
	if g.cfg.MegaMissMargin > 0 && (margin == 0 || g.cfg.MegaMissMargin < margin) {
		margin = g.cfg.MegaMissMargin
	}
	period := margin / 2
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	return period
}

// CreateWatchDog registers a new WatchDog, identified by a fresh ThreadID,
// and returns it. The caller's owning thread must call Touch() on the
// returned WatchDog periodically for the lifetime of the guarded loop.
func (g *GuardDog) CreateWatchDog() *WatchDog {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	wd := &WatchDog{threadID: ThreadID(g.nextID), lastTouch: time.Now()}
	g.dogs[wd.threadID] = wd
	return wd
}

// StopWatching deregisters wd. Idempotent.
func (g *GuardDog) StopWatching(wd *WatchDog) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dogs, wd.threadID)
}

// Close stops the tick loop.
func (g *GuardDog) Close() {
	g.timer.Stop()
	g.scheduler.Stop()
}

// tick snapshots the registration list under the lock, then evaluates every
// watchdog outside it, per spec.md §4.3's design note.
func (g *GuardDog) tick() {
	g.mu.Lock()
	snapshot := make([]*WatchDog, 0, len(g.dogs))
	for _, wd := range g.dogs {
		snapshot = append(snapshot, wd)
	}
	g.mu.Unlock()

	now := time.Now()
	breached := 0

	for _, wd := range snapshot {
		elapsed := now.Sub(wd.lastTouchTime())

		wd.mu.Lock()
		missNow := g.cfg.MissMargin > 0 && elapsed > g.cfg.MissMargin
		megaMissNow := g.cfg.MegaMissMargin > 0 && elapsed > g.cfg.MegaMissMargin

		if missNow && !wd.missed {
			wd.missed = true
			if g.cfg.Counters != nil {
				g.cfg.Counters.IncWatchdogMiss()
			}
		} else if !missNow {
			wd.missed = false
		}

		if megaMissNow && !wd.megaMissed {
			wd.megaMissed = true
			if g.cfg.Counters != nil {
				g.cfg.Counters.IncWatchdogMegaMiss()
			}
		} else if !megaMissNow {
			wd.megaMissed = false
		}
		wd.mu.Unlock()

		if g.cfg.KillTimeout > 0 && elapsed > g.cfg.KillTimeout {
			g.cfg.Kill("watchdog kill_timeout exceeded")
			return
		}
		if g.cfg.MultikillTimeout > 0 && elapsed > g.cfg.MultikillTimeout {
			breached++
		}
	}

	// Multikill requires at least two threads breaching simultaneously: a
	// single stuck thread may be a legitimately slow filter, but a
	// process-wide hang is a deadlock.
	if g.cfg.MultikillTimeout > 0 && breached >= 2 {
		g.cfg.Kill("watchdog multikill_timeout exceeded on multiple threads")
	}
}

func defaultKill(reason string) {
	_ = reason
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGABRT)
}
