package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer is the external-collaborator-hosting listener spec.md §6
// names: /stats, /quitquitquit, /healthcheck/fail, /hot_restart_version.
// The handlers themselves are intentionally thin — this core's job is
// binding and owning the listener, not implementing admin policy.
type AdminServer struct {
	ln     net.Listener
	http   *http.Server
	forced atomic.Bool

	mu           sync.Mutex
	shutdownOnce sync.Once
}

// NewAdminServer wires mux routes against deps and binds ln — the listener
// itself must already be bound by the caller (ServerInstance owns bind vs.
// inherit decisions for every listener, admin included).
func NewAdminServer(ln net.Listener, deps AdminDeps) *AdminServer {
	a := &AdminServer{ln: ln}

	mux := http.NewServeMux()
	mux.Handle("/stats", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthcheck", a.handleHealthcheck(deps))
	mux.HandleFunc("/healthcheck/fail", a.handleHealthcheckFail)
	mux.HandleFunc("/quitquitquit", a.handleQuitQuitQuit(deps))
	mux.HandleFunc("/hot_restart_version", a.handleHotRestartVersion(deps))

	a.http = &http.Server{Handler: mux}
	return a
}

// AdminDeps are the callbacks/values admin's handlers need, kept narrow on
// purpose — this package never reaches into ServerInstance's internals
// directly.
type AdminDeps struct {
	Registry      prometheus.Gatherer
	HealthFailed  func() bool
	TriggerDrain  func() // called by /quitquitquit
	VersionString func() string
}

func (a *AdminServer) handleHealthcheck(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.forced.Load() || (deps.HealthFailed != nil && deps.HealthFailed()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "FAILED")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "LIVE")
	}
}

func (a *AdminServer) handleHealthcheckFail(w http.ResponseWriter, r *http.Request) {
	a.forced.Store(true)
	w.WriteHeader(http.StatusOK)
}

func (a *AdminServer) handleQuitQuitQuit(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
		if deps.TriggerDrain != nil {
			go deps.TriggerDrain()
		}
	}
}

func (a *AdminServer) handleHotRestartVersion(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := ""
		if deps.VersionString != nil {
			v = deps.VersionString()
		}
		fmt.Fprintln(w, v)
	}
}

// Serve runs the admin HTTP server against the already-bound listener until
// Shutdown is called. Meant to be launched in its own goroutine.
func (a *AdminServer) Serve() error {
	err := a.http.Serve(a.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin server.
func (a *AdminServer) Shutdown(timeout time.Duration) error {
	var err error
	a.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err = a.http.Shutdown(ctx)
	})
	return err
}

// Addr returns the bound admin address.
func (a *AdminServer) Addr() net.Addr {
	return a.ln.Addr()
}
