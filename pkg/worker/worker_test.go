package worker

import (
	"net"
	"testing"
	"time"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/netconn"
	"github.com/heliosproxy/helios/pkg/watchdog"
)

func mustListenSocket(t *testing.T) (*config.Listener, *netconn.ListenSocket) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	lc := &config.Listener{Name: "l1", Address: ln.Addr().String()}
	return lc, netconn.NewListenSocket(ln)
}

func TestWorker_InitializeConfigurationAcceptsConnections(t *testing.T) {
	lc, sock := mustListenSocket(t)
	w := New(1, nil, nil, nil, nil)

	cfg := &config.Config{Listeners: []*config.Listener{lc}}
	sockets := map[*config.Listener]*netconn.ListenSocket{lc: sock}

	w.InitializeConfiguration(cfg, sockets)
	time.Sleep(30 * time.Millisecond)

	conn, err := net.Dial("tcp", sock.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if w.NumConnections() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := w.NumConnections(); got != 1 {
		t.Fatalf("NumConnections() = %d, want 1", got)
	}

	w.Exit()
	w.Join()
}

func TestWorker_ExitJoinTearsDownWatchdog(t *testing.T) {
	lc, sock := mustListenSocket(t)
	g := watchdog.New(watchdog.Config{
		MissMargin:     time.Hour,
		MegaMissMargin: time.Hour,
	})
	defer g.Close()

	w := New(1, g, nil, nil, nil)
	cfg := &config.Config{Listeners: []*config.Listener{lc}}
	sockets := map[*config.Listener]*netconn.ListenSocket{lc: sock}

	w.InitializeConfiguration(cfg, sockets)
	time.Sleep(20 * time.Millisecond)

	w.Exit()
	w.Join()

	// CreateWatchDog/StopWatching is exercised by run's defer; the
	// observable contract from outside this package is simply that Join
	// returns once the worker's own teardown (including StopWatching) has
	// completed, which it did above without hanging.
}
