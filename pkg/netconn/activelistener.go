package netconn

import (
	"net"
	"sync/atomic"
	"time"
)

// FilterChainFactory produces whatever protocol handling a listener's
// accepted connections should receive. Protocol/filter semantics
// themselves are out of scope for this package (spec.md §1 Non-goals);
// ConnectionHandler only needs a hook to invoke per accepted Connection.
type FilterChainFactory interface {
	OnNewConnection(*Connection)
}

// NoopFilterChainFactory accepts and immediately tracks a connection
// without running any protocol logic. Useful for tests and for listeners
// that only need connection-count/drain bookkeeping.
type NoopFilterChainFactory struct{}

func (NoopFilterChainFactory) OnNewConnection(*Connection) {}

// ActiveListener runs one worker's accept loop against a shared
// ListenSocket. Each Worker owns exactly one ActiveListener per
// config.Listener it serves; the socket itself is shared, but the accept
// loop, and the decision to stop accepting, are per-worker.
type ActiveListener struct {
	socket  *ListenSocket
	handler *ConnectionHandler
	factory FilterChainFactory

	stopped atomic.Bool
	done    chan struct{}
}

func newActiveListener(socket *ListenSocket, handler *ConnectionHandler, factory FilterChainFactory) *ActiveListener {
	if factory == nil {
		factory = NoopFilterChainFactory{}
	}
	al := &ActiveListener{
		socket:  socket,
		handler: handler,
		factory: factory,
		done:    make(chan struct{}),
	}
	go al.run()
	return al
}

// acceptPollInterval bounds how long Accept blocks before re-checking the
// stopped flag. The listener's file descriptor is shared with other
// workers, so stopping this ActiveListener must never close it — a short
// deadline on the *net.TCPListener is the only way to interrupt a blocking
// Accept without touching the shared fd.
const acceptPollInterval = 250 * time.Millisecond

func (al *ActiveListener) run() {
	defer close(al.done)

	for {
		if al.stopped.Load() {
			return
		}

		if tcpLn, ok := al.socket.Listener().(*net.TCPListener); ok {
			_ = tcpLn.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := al.socket.Listener().Accept()
		if al.stopped.Load() {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			continue
		}

		al.handler.onAccept(al, conn)
	}
}

// stop signals the accept loop to exit on its next deadline wakeup and
// blocks until it has.
func (al *ActiveListener) stop() {
	al.stopped.Store(true)
	<-al.done
}
