package netconn

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// Connection is one accepted socket, held in an intrusive doubly-linked
// list by its owning ConnectionHandler. Splicing a Connection out of the
// list on close is O(1): no slice search, no map hashing.
type Connection struct {
	ID uuid.UUID

	conn     net.Conn
	listener *ActiveListener

	prev, next *Connection

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(conn net.Conn, al *ActiveListener) *Connection {
	return &Connection{
		ID:       uuid.New(),
		conn:     conn,
		listener: al,
		closed:   make(chan struct{}),
	}
}

// Conn returns the underlying net.Conn.
func (c *Connection) Conn() net.Conn {
	return c.conn
}

// Closed reports whether Close has run.
func (c *Connection) Closed() <-chan struct{} {
	return c.closed
}

// close shuts down the socket. Must be called with the owning
// ConnectionHandler's list lock held, or via ConnectionHandler.CloseConn.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.closed)
	})
}
