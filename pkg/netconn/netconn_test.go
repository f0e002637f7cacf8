package netconn

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/dispatcher"
)

func mustListen(t *testing.T) *ListenSocket {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return NewListenSocket(ln)
}

func runDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d := dispatcher.New()
	go d.Run()
	t.Cleanup(func() {
		d.Exit()
		d.Close()
	})
	return d
}

type countingFactory struct {
	n atomic.Int64
}

func (f *countingFactory) OnNewConnection(*Connection) { f.n.Add(1) }

func TestConnectionHandler_AddListenerAcceptsConnections(t *testing.T) {
	d := runDispatcher(t)
	h := New(d, nil)
	sock := mustListen(t)
	factory := &countingFactory{}

	cfg := &config.Listener{Name: "l1", Address: sock.Addr().String()}
	h.AddListener(cfg, sock, factory)

	// Give the accept goroutine a moment to start before dialing.
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("tcp", sock.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.NumConnections() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.NumConnections(); got != 1 {
		t.Fatalf("NumConnections() = %d, want 1", got)
	}
	if factory.n.Load() != 1 {
		t.Fatalf("factory invoked %d times, want 1", factory.n.Load())
	}
}

func TestConnectionHandler_CloseListenersStopsAcceptingWithoutClosingSocket(t *testing.T) {
	d := runDispatcher(t)
	h := New(d, nil)
	sock := mustListen(t)

	cfg := &config.Listener{Name: "l1", Address: sock.Addr().String()}
	h.AddListener(cfg, sock, nil)
	time.Sleep(20 * time.Millisecond)

	h.CloseListeners()

	// The shared socket must still be open — ConnectionHandler never closes
	// a ListenSocket, only its own ActiveListener's accept loop. A second
	// Close (the real one, owned by whoever bound it) must succeed exactly
	// once and not have already happened as a side effect of CloseListeners.
	if err := sock.Close(); err != nil {
		t.Fatalf("socket was already closed by CloseListeners: %v", err)
	}
}

func TestConnectionHandler_CloseConnectionsEmptiesList(t *testing.T) {
	d := runDispatcher(t)
	h := New(d, nil)
	sock := mustListen(t)

	cfg := &config.Listener{Name: "l1", Address: sock.Addr().String()}
	h.AddListener(cfg, sock, nil)
	time.Sleep(20 * time.Millisecond)

	const n = 5
	conns := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		c, err := net.Dial("tcp", sock.Addr().String())
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		conns = append(conns, c)
	}
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.NumConnections() == n {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.NumConnections(); got != n {
		t.Fatalf("NumConnections() = %d, want %d", got, n)
	}

	h.CloseConnections()
	if got := h.NumConnections(); got != 0 {
		t.Fatalf("NumConnections() after CloseConnections = %d, want 0", got)
	}
}
