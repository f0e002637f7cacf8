package netconn

import (
	"net"
	"sync"

	"github.com/heliosproxy/helios/pkg/config"
	"github.com/heliosproxy/helios/pkg/dispatcher"
	"github.com/heliosproxy/helios/pkg/telemetry/logging"
)

// ConnectionHandler is spec.md §4.4's per-worker connection owner. Every
// method that mutates the listener map or the connection list must run on
// the handler's dispatcher loop. AddListener is safe to call from any
// goroutine because it posts the mutation itself; CloseListeners and
// CloseConnections do not post and must either be called from the handler's
// own loop goroutine, or have the caller post them there (e.g.
// w.Dispatcher().Post(h.CloseListeners)) — reaching into a handler from a
// different loop without posting is a bug, not a supported fast path.
type ConnectionHandler struct {
	d      *dispatcher.Dispatcher
	logger *logging.Logger

	mu        sync.Mutex
	listeners map[*config.Listener]*ActiveListener
	head, tail *Connection
	count     int
}

// New builds a ConnectionHandler bound to d. d is the dispatcher the owning
// Worker runs — every listener accept and every connection add/remove this
// handler performs is marshaled onto it. logger may be nil, in which case
// per-connection accept/close events go unlogged.
func New(d *dispatcher.Dispatcher, logger *logging.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		d:         d,
		logger:    logger,
		listeners: make(map[*config.Listener]*ActiveListener),
	}
}

// AddListener starts accepting on sock on behalf of cfg, using factory to
// handle newly accepted connections. Safe to call from any goroutine.
func (h *ConnectionHandler) AddListener(cfg *config.Listener, sock *ListenSocket, factory FilterChainFactory) {
	h.d.Post(func() {
		h.addListenerNow(cfg, sock, factory)
	})
}

func (h *ConnectionHandler) addListenerNow(cfg *config.Listener, sock *ListenSocket, factory FilterChainFactory) {
	h.mu.Lock()
	if _, exists := h.listeners[cfg]; exists {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	al := newActiveListener(sock, h, factory)

	h.mu.Lock()
	h.listeners[cfg] = al
	h.mu.Unlock()
}

// CloseListeners stops every accept loop this handler owns without
// disturbing already-accepted connections or the shared listen sockets
// themselves (those are ServerInstance's to close). Blocks until every
// accept loop has exited.
func (h *ConnectionHandler) CloseListeners() {
	h.mu.Lock()
	listeners := make([]*ActiveListener, 0, len(h.listeners))
	for cfg, al := range h.listeners {
		listeners = append(listeners, al)
		delete(h.listeners, cfg)
	}
	h.mu.Unlock()

	for _, al := range listeners {
		al.stop()
	}
}

// CloseConnections force-closes every currently tracked connection. Used on
// the terminate path (spec.md §4.6), where drain has already run out or was
// skipped entirely.
func (h *ConnectionHandler) CloseConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := h.head; c != nil; {
		next := c.next
		c.close()
		c.prev, c.next = nil, nil
		c = next
	}
	h.head, h.tail = nil, nil
	h.count = 0
}

// NumConnections returns the live connection count. O(1).
func (h *ConnectionHandler) NumConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// onAccept is called by an ActiveListener's accept-loop goroutine. It posts
// the actual list mutation onto the dispatcher loop, so the intrusive list
// is only ever touched from one goroutine at a time.
func (h *ConnectionHandler) onAccept(al *ActiveListener, conn net.Conn) {
	h.d.Post(func() {
		c := newConnection(conn, al)
		h.pushFront(c)
		if h.logger != nil {
			h.logger.Debug("connection accepted", "connection_id", c.ID, "remote_addr", conn.RemoteAddr())
		}
		al.factory.OnNewConnection(c)
	})
}

func (h *ConnectionHandler) pushFront(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.next = h.head
	if h.head != nil {
		h.head.prev = c
	}
	h.head = c
	if h.tail == nil {
		h.tail = c
	}
	h.count++
}

// CloseConn removes c from the live list and closes its socket. O(1).
func (h *ConnectionHandler) CloseConn(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.prev != nil {
		c.prev.next = c.next
	} else if h.head == c {
		h.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else if h.tail == c {
		h.tail = c.prev
	}
	c.prev, c.next = nil, nil
	h.count--

	if h.logger != nil {
		h.logger.Debug("connection closed", "connection_id", c.ID)
	}
	c.close()
}
