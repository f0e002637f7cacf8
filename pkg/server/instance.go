// Package server implements spec.md §4.6's ServerInstance: the phased
// lifecycle orchestrator that turns a configuration file into running
// Workers, and shepherds the process through hot restart, draining, and
// exit. Everything this package does sits on top of the packages built
// below it — dispatcher, netconn, worker, watchdog, drain, initmanager,
// hotrestart, telemetry — composing them per spec.md §4.6's step list.
package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/corerr"
	"github.com/heliosproxy/helios/pkg/dispatcher"
	"github.com/heliosproxy/helios/pkg/drain"
	"github.com/heliosproxy/helios/pkg/hotrestart"
	"github.com/heliosproxy/helios/pkg/initmanager"
	"github.com/heliosproxy/helios/pkg/netconn"
	"github.com/heliosproxy/helios/pkg/serverflags"
	"github.com/heliosproxy/helios/pkg/telemetry/logging"
	"github.com/heliosproxy/helios/pkg/telemetry/metrics"
	"github.com/heliosproxy/helios/pkg/watchdog"
	"github.com/heliosproxy/helios/pkg/worker"
)

// RuntimeLoader is spec.md §4.6 step 10's external collaborator, narrowed
// to the one capability SSL context construction and feature-gated
// behavior need (SPEC_FULL.md §4).
type RuntimeLoader interface {
	FeatureEnabled(key string, fallback bool) bool
}

// staticRuntimeLoader always returns the caller's fallback. Stands in for
// the real runtime-overlay loader, which is explicitly out of scope.
type staticRuntimeLoader struct{}

func (staticRuntimeLoader) FeatureEnabled(_ string, fallback bool) bool { return fallback }

// ClusterManager is spec.md §4.6 step 12's external collaborator, narrowed
// to the one signal ServerInstance actually waits on: first-round init of
// every primary cluster completing.
type ClusterManager interface {
	Initialize(cfg *config.Config) error
	OnFirstInitComplete(cb func())
	Shutdown()
}

// staticClusterManager has no clusters to initialize, so it fires its
// callback synchronously — the "nothing was async" fast path spec.md §4.6
// step 18 calls out explicitly.
type staticClusterManager struct{}

func (staticClusterManager) Initialize(*config.Config) error { return nil }
func (staticClusterManager) OnFirstInitComplete(cb func())   { cb() }
func (staticClusterManager) Shutdown()                       {}

// Deps lets a caller override the external collaborators this core treats
// as fixed contracts. Every field has a zero-value-safe default used when
// left nil, so most callers only need to set BuildSHA.
type Deps struct {
	BuildSHA       string
	Runtime        RuntimeLoader
	ClusterManager ClusterManager
	Logger         *logging.Logger
	FilterChain    netconn.FilterChainFactory
	RestartBase    string // hot-restart UDS base path
	StorePath      string // hot-restart sqlite persisted-state path
}

// Instance is spec.md §4.6's ServerInstance.
type Instance struct {
	opts config.Options
	cfg  *config.Config
	deps Deps

	store       *metrics.Store
	versionStat uint64

	restarter hotrestart.Restarter
	hrStore   *hotrestart.Store

	drainMgr *drain.Manager
	initMgr  *initmanager.Manager
	guardDog *watchdog.GuardDog

	mainDispatcher *dispatcher.Dispatcher

	admin   *AdminServer
	adminLn net.Listener

	socketMap map[*config.Listener]*netconn.ListenSocket
	workers   []*worker.Worker

	flagsWatcher *serverflags.Watcher
	healthFailed atomic.Bool

	statsFlushTimer *dispatcher.Timer
	statsSink       metrics.StatSink

	originalStartTime time.Time

	mu             sync.Mutex
	shuttingDown   bool
	drainStartedAt time.Time
}

// New runs spec.md §4.6's Phase 1 and Phase 2 synchronously and returns an
// Instance ready for Run. Any ConfigError from this constructor is fatal
// per spec.md §7: the caller should log it critical and exit 1.
func New(opts config.Options, cfg *config.Config, deps Deps) (*Instance, error) {
	versionStat, err := computeVersionStat(deps.BuildSHA)
	if err != nil {
		return nil, err
	}

	if deps.Runtime == nil {
		deps.Runtime = staticRuntimeLoader{}
	}
	if deps.ClusterManager == nil {
		deps.ClusterManager = staticClusterManager{}
	}
	if deps.FilterChain == nil {
		deps.FilterChain = netconn.NoopFilterChainFactory{}
	}
	if deps.RestartBase == "" {
		deps.RestartBase = "/tmp/helios_hot_restart"
	}

	s := &Instance{
		opts:           opts,
		cfg:            cfg,
		deps:           deps,
		store:          metrics.NewStore("helios", "server"),
		versionStat:    versionStat,
		mainDispatcher: dispatcher.New(),
		drainMgr:       drain.New(cfg.Drain.Timeout()),
		initMgr:        initmanager.New(),
		socketMap:      make(map[*config.Listener]*netconn.ListenSocket),
	}
	s.store.Gauge("server_version").Set(int64(versionStat))

	if deps.StorePath != "" {
		hrStore, err := hotrestart.OpenStore(deps.StorePath)
		if err != nil {
			return nil, corerr.NewConfigError("hot_restart_store", err.Error())
		}
		s.hrStore = hrStore
	}

	restarter, err := hotrestart.NewUDSRestarter(deps.RestartBase, opts.RestartEpoch)
	if err != nil {
		return nil, corerr.NewConfigError("restart_epoch", err.Error())
	}
	s.restarter = restarter
	if err := s.restarter.Initialize(s.mainDispatcher, s); err != nil {
		return nil, corerr.NewConfigError("hot_restart", err.Error())
	}

	if err := s.phase1Preamble(); err != nil {
		return nil, err
	}
	if err := s.phase2Wiring(); err != nil {
		return nil, err
	}

	return s, nil
}

// phase1Preamble is spec.md §4.6 Phase 1, steps 4–6 (steps 1–3 already ran
// in New: version stat, restarter.Initialize, DrainManager construction).
func (s *Instance) phase1Preamble() error {
	originalStartTime, err := s.restarter.ShutdownParentAdmin()
	if err != nil {
		return corerr.NewConfigError("hot_restart", fmt.Sprintf("shutdown parent admin: %v", err))
	}
	if !originalStartTime.IsZero() {
		s.originalStartTime = originalStartTime
	} else if s.hrStore != nil {
		inherited, _ := s.hrStore.OriginalStartTime()
		if !inherited.IsZero() {
			s.originalStartTime = inherited
		}
	}
	if s.originalStartTime.IsZero() {
		s.originalStartTime = time.Now()
		if s.hrStore != nil {
			_ = s.hrStore.SetOriginalStartTime(s.originalStartTime)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Admin.Address)
	if err != nil {
		return corerr.NewConfigError("admin.address", err.Error())
	}
	s.adminLn = ln
	s.admin = NewAdminServer(ln, AdminDeps{
		Registry:      s.store.Registry(),
		HealthFailed:  s.healthFailed.Load,
		TriggerDrain:  s.Shutdown,
		VersionString: func() string { return versionString(s.versionStat) },
	})
	go func() {
		if err := s.admin.Serve(); err != nil && s.deps.Logger != nil {
			s.deps.Logger.Error("admin server exited", "error", err)
		}
	}()

	if s.opts.FlagsPath != "" {
		s.healthFailed.Store(serverflags.CheckDrain(s.opts.FlagsPath))
		fw, err := serverflags.New(s.opts.FlagsPath, 200*time.Millisecond, func(draining bool) {
			s.healthFailed.Store(draining)
		})
		if err != nil {
			return corerr.NewConfigError("flags_path", err.Error())
		}
		if err := fw.Start(); err != nil {
			return corerr.NewConfigError("flags_path", err.Error())
		}
		s.flagsWatcher = fw
	}

	return nil
}

// phase2Wiring is spec.md §4.6 Phase 2, steps 7–18.
func (s *Instance) phase2Wiring() error {
	s.guardDog = watchdog.New(watchdog.Config{
		MissMargin:       s.cfg.Watchdog.MissMargin(),
		MegaMissMargin:   s.cfg.Watchdog.MegaMissMargin(),
		KillTimeout:      s.cfg.Watchdog.KillTimeout(),
		MultikillTimeout: s.cfg.Watchdog.MultikillTimeout(),
		Counters:         s.store,
	})

	for i := 0; i < s.opts.Concurrency; i++ {
		s.workers = append(s.workers, worker.New(worker.ID(i), s.guardDog, s.deps.FilterChain, s.deps.Logger, s.touchWorker))
	}

	if err := s.deps.ClusterManager.Initialize(s.cfg); err != nil {
		return corerr.NewConfigError("cluster_manager", err.Error())
	}

	for _, lc := range s.cfg.Listeners {
		if lc.UDS {
			continue // per-worker, excluded from socket_map
		}
		sock, err := s.acquireListenSocket(lc)
		if err != nil {
			return err
		}
		s.socketMap[lc] = sock
	}

	s.mainDispatcher.ListenForSignal(syscall.SIGTERM, func() {
		_ = s.restarter.TerminateParent()
		s.mainDispatcher.Exit()
	})
	s.mainDispatcher.ListenForSignal(syscall.SIGUSR1, func() {
		if s.deps.Logger != nil {
			_ = s.deps.Logger.Reopen()
		}
	})
	// SIGHUP is intentionally ignored: hot restart is the only reload
	// mechanism this core offers.

	if s.cfg.Stats.StatsdUDPAddress != "" {
		sink, err := metrics.NewStatsdUDPSink(s.cfg.Stats.StatsdUDPAddress)
		if err != nil {
			return corerr.NewConfigError("stats.statsd_udp_address", err.Error())
		}
		s.statsSink = sink
	}
	if interval := s.cfg.Stats.FlushInterval(); interval > 0 {
		s.statsFlushTimer = s.mainDispatcher.CreateTimer(interval, s.flushStats)
	}

	s.deps.ClusterManager.OnFirstInitComplete(func() {
		s.initMgr.Initialize(s.startWorkers)
	})

	return nil
}

// acquireListenSocket implements spec.md §4.6 step 13: try to inherit the
// parent's fd over the hot-restart RPC; bind fresh if that returns nothing.
func (s *Instance) acquireListenSocket(lc *config.Listener) (*netconn.ListenSocket, error) {
	ln, err := s.restarter.DuplicateParentListenSocket(lc.Address)
	if err != nil && s.deps.Logger != nil {
		s.deps.Logger.Warn("duplicate parent listen socket failed, binding fresh", "listener", lc.Name, "error", err)
	}
	if ln != nil {
		return netconn.NewListenSocket(ln), nil
	}

	fresh, err := net.Listen("tcp", lc.Address)
	if err != nil {
		return nil, corerr.NewBindRaceError(lc.Name, lc.Address, err)
	}
	return netconn.NewListenSocket(fresh), nil
}

// VersionStat returns the process's build-fingerprint version stat.
func (s *Instance) VersionStat() uint64 { return s.versionStat }

// Store exposes the stats store, e.g. for test assertions.
func (s *Instance) Store() *metrics.Store { return s.store }

// AdminAddr returns the bound admin listener's address, for writing out to
// options.AdminAddressPath.
func (s *Instance) AdminAddr() string { return s.admin.Addr().String() }

// touchWorker is the worker.Worker touch-timer hook: persist this worker's
// liveness into the hot-restart store, if one is configured, so a
// successor epoch inheriting this process's listeners can tell which
// workers were still alive if this process crashes before a clean
// shutdown.
func (s *Instance) touchWorker(id worker.ID) {
	if s.hrStore == nil {
		return
	}
	if err := s.hrStore.TouchWorker(int(id)); err != nil && s.deps.Logger != nil {
		s.deps.Logger.Warn("touch worker liveness failed", "worker", int(id), "error", err)
	}
}
