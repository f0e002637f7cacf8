package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/corerr"
)

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freeTCPAddr: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func testConfig(t *testing.T, adminAddr, listenerAddr string) *config.Config {
	cfg := &config.Config{
		Admin: config.AdminConfig{Address: adminAddr},
		Listeners: []*config.Listener{
			{Name: "ingress", Address: listenerAddr, BindToPort: true},
		},
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

func testOpts(t *testing.T) config.Options {
	return config.Options{
		ConfigPath:   "unused",
		RestartEpoch: 0,
		Concurrency:  2,
	}
}

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(t, freeTCPAddr(t), freeTCPAddr(t))
	opts := testOpts(t)

	inst, err := New(opts, cfg, Deps{
		BuildSHA:    "abc123deadbeef",
		RestartBase: filepath.Join(dir, "hot_restart"),
		StorePath:   filepath.Join(dir, "state.db"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		for _, w := range inst.workers {
			w.Exit()
		}
		for _, w := range inst.workers {
			w.Join()
		}
		inst.guardDog.Close()
		_ = inst.admin.Shutdown(time.Second)
		_ = inst.restarter.Close()
		if inst.hrStore != nil {
			_ = inst.hrStore.Close()
		}
		inst.drainMgr.Close()
		if inst.flagsWatcher != nil {
			_ = inst.flagsWatcher.Stop()
		}
	})
	return inst
}

func TestNew_BuildsAdminAndListenerSockets(t *testing.T) {
	inst := newTestInstance(t)
	defer inst.Shutdown()

	if inst.VersionStat() == 0 {
		t.Error("expected non-zero version stat")
	}
	if len(inst.socketMap) != 1 {
		t.Fatalf("socketMap len = %d, want 1", len(inst.socketMap))
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthcheck", inst.admin.Addr().String()))
	if err != nil {
		t.Fatalf("GET /healthcheck: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthcheck status = %d, want 200", resp.StatusCode)
	}
}

func TestNew_RejectsUnparseableBuildSHA(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, freeTCPAddr(t), freeTCPAddr(t))

	_, err := New(testOpts(t), cfg, Deps{
		BuildSHA:    "zz",
		RestartBase: filepath.Join(dir, "hot_restart"),
	})
	if err == nil {
		t.Fatal("expected error for a too-short build SHA")
	}
}

// TestNew_BindRaceReturnsBindRaceError exercises spec.md §8 scenario 6:
// another process has already won the race for a configured listener's
// address, so acquireListenSocket's fallback net.Listen loses and New
// must fail with a *corerr.BindRaceError rather than any other error kind.
func TestNew_BindRaceReturnsBindRaceError(t *testing.T) {
	dir := t.TempDir()
	listenerAddr := freeTCPAddr(t)

	occupying, err := net.Listen("tcp", listenerAddr)
	if err != nil {
		t.Fatalf("occupy listener address: %v", err)
	}
	defer occupying.Close()

	cfg := testConfig(t, freeTCPAddr(t), listenerAddr)

	_, err = New(testOpts(t), cfg, Deps{
		BuildSHA:    "abc123deadbeef",
		RestartBase: filepath.Join(dir, "hot_restart"),
	})
	if err == nil {
		t.Fatal("expected an error when the listener address is already bound")
	}

	var bindErr *corerr.BindRaceError
	if !errors.As(err, &bindErr) {
		t.Fatalf("New() error = %v, want a *corerr.BindRaceError", err)
	}
	if bindErr.ListenerName != "ingress" {
		t.Errorf("BindRaceError.ListenerName = %q, want %q", bindErr.ListenerName, "ingress")
	}
	if bindErr.Address != listenerAddr {
		t.Errorf("BindRaceError.Address = %q, want %q", bindErr.Address, listenerAddr)
	}
}

func TestInstance_StartWorkersAcceptsConnections(t *testing.T) {
	inst := newTestInstance(t)
	defer inst.Shutdown()

	// The default ClusterManager fires OnFirstInitComplete synchronously,
	// so startWorkers already ran by the time New returns.
	var listenerAddr string
	for lc := range inst.socketMap {
		listenerAddr = lc.Address
	}

	time.Sleep(50 * time.Millisecond) // let worker accept loops spin up

	conn, err := net.DialTimeout("tcp", listenerAddr, 2*time.Second)
	if err != nil {
		t.Fatalf("Dial listener: %v", err)
	}
	conn.Close()
}

func TestInstance_ShutdownIsIdempotent(t *testing.T) {
	inst := newTestInstance(t)
	inst.Shutdown()
	inst.Shutdown() // must not panic or double-close anything
}

func TestInstance_LocalServerVersionMatchesAdminEndpoint(t *testing.T) {
	inst := newTestInstance(t)
	defer inst.Shutdown()

	resp, err := http.Get(fmt.Sprintf("http://%s/hot_restart_version", inst.admin.Addr().String()))
	if err != nil {
		t.Fatalf("GET /hot_restart_version: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read /hot_restart_version body: %v", err)
	}

	got := inst.Version()
	if got == "" {
		t.Error("Version() returned empty string")
	}
	if served := strings.TrimSpace(string(body)); served != got {
		t.Errorf("/hot_restart_version = %q, want Version() %q", served, got)
	}
}
