package server

import (
	"net"
	"runtime"
	"time"

	"github.com/heliosproxy/helios/pkg/initmanager"
)

// Run is spec.md §4.6 Phase 3: block on the main dispatcher until something
// calls Exit (SIGTERM, or Shutdown's drain-then-exit sequence), then tear
// every owned resource down, workers and guard dog first.
func (s *Instance) Run() {
	s.mainDispatcher.Run()
	s.teardown()
}

func (s *Instance) teardown() {
	// Workers only ever get a goroutine once startWorkers has run; if the
	// process exits before the init barrier fired (an async ClusterManager
	// still mid-init), there is nothing to Exit/Join.
	if s.initMgr.State() == initmanager.Initialized {
		for _, w := range s.workers {
			w.Exit()
		}
		for _, w := range s.workers {
			w.Join()
		}
	}
	s.guardDog.Close()

	for _, sock := range s.socketMap {
		_ = sock.Close()
	}

	if s.statsFlushTimer != nil {
		s.statsFlushTimer.Stop()
	}
	if sink, ok := s.statsSink.(interface{ Close() error }); ok {
		_ = sink.Close()
	}
	if s.flagsWatcher != nil {
		_ = s.flagsWatcher.Stop()
	}
	_ = s.admin.Shutdown(5 * time.Second)
	_ = s.restarter.Close()
	if s.hrStore != nil {
		_ = s.hrStore.Close()
	}
	s.drainMgr.Close()
	s.deps.ClusterManager.Shutdown()
}

// startWorkers is spec.md §4.6 Phase 4: the initmanager.Initialize
// continuation, run once every registered init target (the cluster
// manager's first-round init) has completed. Every worker starts with the
// same immutable config snapshot and socket map.
func (s *Instance) startWorkers() {
	for _, w := range s.workers {
		w.InitializeConfiguration(s.cfg, s.socketMap)
	}

	if err := s.restarter.DrainParentListeners(); err != nil && s.deps.Logger != nil {
		s.deps.Logger.Warn("drain parent listeners failed", "error", err)
	}
	s.drainMgr.StartParentShutdownSequence(s.cfg.Drain.ParentShutdownTimeout(), func() {
		_ = s.restarter.TerminateParent()
	})
}

// Shutdown begins the drain-then-exit sequence: the DrainManager ramp
// starts and every worker stops accepting new connections immediately, and
// once the drain timeout has elapsed (when the ramp would refuse every
// remaining connection) the main dispatcher exits. Safe to call more than
// once; only the first call has effect.
// Installed as AdminDeps.TriggerDrain, so /quitquitquit reaches here too.
func (s *Instance) Shutdown() {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return
	}
	s.shuttingDown = true
	s.drainStartedAt = time.Now()
	s.mu.Unlock()

	s.drainMgr.StartDrainSequence()
	s.healthFailed.Store(true)

	s.closeWorkerListeners()
	s.mainDispatcher.CreateOneShotTimer(s.cfg.Drain.Timeout(), func() {
		s.mainDispatcher.Exit()
	})
}

// flushStats is the stats-flush timer callback spec.md §4.6 names: ask the
// parent (if any) for its still-live stats, add them to this process's own
// values in the local store, persist the sums to the hot-restart store (if
// configured), then latch everything out to the stat sink.
func (s *Instance) flushStats() {
	parentMemory, parentConnections, err := s.restarter.GetParentStats()
	if err != nil && s.deps.Logger != nil {
		s.deps.Logger.Warn("get parent stats failed", "error", err)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.store.Gauge("memory_allocated").Set(int64(mem.Alloc + parentMemory))
	s.store.Gauge("connections_total").Set(int64(s.numConnections() + parentConnections))

	if s.hrStore != nil {
		_ = s.hrStore.SetLastFlushedStats(mem.Alloc+parentMemory, s.numConnections()+parentConnections)
	}
	if s.statsSink != nil {
		s.store.FlushTo(s.statsSink)
	}
}

func (s *Instance) numConnections() int {
	total := 0
	for _, w := range s.workers {
		total += w.NumConnections()
	}
	return total
}

// The methods below implement hotrestart.LocalServer, letting a future
// child restart epoch drive this process exactly the way it drives its own
// parent.

func (s *Instance) ShutdownAdmin() (time.Time, error) {
	err := s.admin.Shutdown(5 * time.Second)
	return s.originalStartTime, err
}

func (s *Instance) DuplicateListenSocket(addr string) (net.Listener, bool) {
	for lc, sock := range s.socketMap {
		if lc.Address == addr {
			return sock.Listener(), true
		}
	}
	return nil, false
}

func (s *Instance) Stats() (memoryAllocated uint64, numConnections int) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return mem.Alloc, s.numConnections()
}

func (s *Instance) DrainListeners() {
	s.closeWorkerListeners()
}

// closeWorkerListeners posts a close onto each worker's own dispatcher loop,
// matching original_source/source/server/server.cc's drainListeners(): every
// worker is told to stop accepting on its own thread, never reached into
// from another loop.
func (s *Instance) closeWorkerListeners() {
	for _, w := range s.workers {
		w := w
		w.Dispatcher().Post(func() {
			if h := w.Handler(); h != nil {
				h.CloseListeners()
			}
		})
	}
}

func (s *Instance) Terminate() {
	s.mainDispatcher.Exit()
}

func (s *Instance) ShutdownSelf() {
	s.Shutdown()
}

func (s *Instance) Version() string {
	return versionString(s.versionStat)
}
