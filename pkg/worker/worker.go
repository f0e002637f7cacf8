// Package worker implements spec.md §4.5's Worker: a thread object
// constructed on the main goroutine (so its slot in whatever thread-local
// bookkeeping the process keeps is reserved early) whose actual OS thread
// — a goroutine running its own Dispatcher — is not spawned until
// InitializeConfiguration is called.
package worker

import (
	"sync"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/dispatcher"
	"github.com/heliosproxy/helios/pkg/netconn"
	"github.com/heliosproxy/helios/pkg/telemetry/logging"
	"github.com/heliosproxy/helios/pkg/watchdog"
)

// ID identifies a Worker within a process. Reserved at construction time,
// before the worker's loop goroutine exists.
type ID int

// Worker owns one Dispatcher, one ConnectionHandler, and one WatchDog, all
// of which live exclusively on the goroutine InitializeConfiguration
// spawns. Every method on this type except Dispatcher/ID/NumConnections is
// meant to be called from the main goroutine during setup and teardown only.
type Worker struct {
	id ID

	mu      sync.Mutex
	started bool
	stopped chan struct{}

	d       *dispatcher.Dispatcher
	handler *netconn.ConnectionHandler
	wd      *watchdog.WatchDog
	logger  *logging.Logger

	guardDog *watchdog.GuardDog
	factory  netconn.FilterChainFactory
	onTouch  func(ID)
}

// New reserves a Worker slot. No goroutine is started yet. onTouch, if
// non-nil, is called alongside the watchdog touch on every touch-timer
// tick — the hook ServerInstance uses to persist per-worker liveness into
// the hot-restart store.
func New(id ID, guardDog *watchdog.GuardDog, factory netconn.FilterChainFactory, logger *logging.Logger, onTouch func(ID)) *Worker {
	return &Worker{
		id:       id,
		d:        dispatcher.New(),
		guardDog: guardDog,
		factory:  factory,
		logger:   logger,
		onTouch:  onTouch,
		stopped:  make(chan struct{}),
	}
}

// ID returns this worker's reserved identifier.
func (w *Worker) ID() ID {
	return w.id
}

// Dispatcher returns the loop reference, for callers (ServerInstance) that
// need to Post work onto this specific worker from the main thread.
func (w *Worker) Dispatcher() *dispatcher.Dispatcher {
	return w.d
}

// NumConnections reports this worker's live connection count. Safe to call
// from any goroutine; the handler guards its own list internally.
func (w *Worker) NumConnections() int {
	w.mu.Lock()
	h := w.handler
	w.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.NumConnections()
}

// InitializeConfiguration spawns the worker's OS thread (a goroutine
// running its dispatcher) and, once that loop is live, walks every
// listener in cfg, handing each its pre-bound or restart-inherited
// ListenSocket from sockets. Matches spec.md §4.5 steps 1–4.
func (w *Worker) InitializeConfiguration(cfg *config.Config, sockets map[*config.Listener]*netconn.ListenSocket) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.handler = netconn.New(w.d, w.logger)
	w.mu.Unlock()

	go w.run(cfg, sockets)
}

func (w *Worker) run(cfg *config.Config, sockets map[*config.Listener]*netconn.ListenSocket) {
	defer close(w.stopped)

	if w.guardDog != nil {
		w.wd = w.guardDog.CreateWatchDog()
		defer w.guardDog.StopWatching(w.wd)
	}

	touchInterval := cfg.Watchdog.MissInterval() / 2
	var touchTimer *dispatcher.Timer
	if w.wd != nil && touchInterval > 0 {
		touchTimer = w.d.CreateTimer(touchInterval, w.touch)
		defer touchTimer.Stop()
	}

	for _, lc := range cfg.Listeners {
		sock := sockets[lc]
		if sock == nil {
			continue
		}
		w.handler.AddListener(lc, sock, w.factory)
	}

	w.d.Run()

	w.handler.CloseListeners()
}

// touch is the touch-timer callback: it pets the watchdog and, if
// ServerInstance gave this worker a hot-restart liveness hook, records
// that this worker id was alive as of now.
func (w *Worker) touch() {
	w.wd.Touch()
	if w.onTouch != nil {
		w.onTouch(w.id)
	}
}

// Exit posts the worker's loop-exit task and returns immediately. Call
// Join to wait for the worker thread to actually finish tearing down.
func (w *Worker) Exit() {
	w.d.Exit()
}

// Join blocks until the worker's goroutine has returned from run, i.e.
// until its dispatcher has stopped and its listeners have been closed.
func (w *Worker) Join() {
	<-w.stopped
}

// Handler returns the worker's ConnectionHandler for the cases where a
// caller already running on this worker's own loop needs direct access
// (e.g. CloseConnections during terminate). nil until
// InitializeConfiguration has run.
func (w *Worker) Handler() *netconn.ConnectionHandler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler
}
