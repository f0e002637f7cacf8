// Package netconn implements the worker-side connection plumbing spec.md
// §3–§4.4 describes: a shared ListenSocket wrapping one bound (or
// restart-inherited) file descriptor, a per-worker ActiveListener that runs
// the accept loop against it, and a ConnectionHandler that owns the live
// Connection list on exactly one dispatcher loop.
package netconn

import "net"

// ListenSocket is one opened, bound listener shared read-only by every
// Worker's ActiveListener. It is created exactly once per
// config.Listener — either freshly bound or duplicated from a hot-restart
// parent — and owned by the caller (ServerInstance), which alone is
// responsible for closing it once every worker has torn down its
// ActiveListener.
type ListenSocket struct {
	ln net.Listener
}

// NewListenSocket wraps an already-open net.Listener.
func NewListenSocket(ln net.Listener) *ListenSocket {
	return &ListenSocket{ln: ln}
}

// Listener returns the underlying net.Listener. Workers call Accept on it
// concurrently; a single net.Listener's Accept is safe for concurrent use,
// and the Go runtime's netpoller fans out ready connections across whichever
// goroutine calls Accept next — the userspace-lock fallback spec.md's design
// notes mention for platforms without SO_REUSEPORT, for free.
func (s *ListenSocket) Listener() net.Listener {
	return s.ln
}

// Addr returns the bound address.
func (s *ListenSocket) Addr() net.Addr {
	return s.ln.Addr()
}

// Close closes the underlying file descriptor. Must only be called once,
// by whichever component owns the socket map (ServerInstance), after every
// worker using it has stopped accepting.
func (s *ListenSocket) Close() error {
	return s.ln.Close()
}
