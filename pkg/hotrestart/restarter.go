package hotrestart

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/heliosproxy/helios/pkg/dispatcher"
)

// Restarter is spec.md §6's hot-restart RPC contract, from the caller's
// side. Every method is a synchronous call to the parent process (or, on
// epoch 0 where there is no parent, a cheap no-op returning zero values).
type Restarter interface {
	Initialize(d *dispatcher.Dispatcher, local LocalServer) error
	ShutdownParentAdmin() (originalStartTime time.Time, err error)
	DuplicateParentListenSocket(addr string) (net.Listener, error)
	GetParentStats() (memoryAllocated uint64, numConnections int, err error)
	DrainParentListeners() error
	TerminateParent() error
	Shutdown() error
	Version() string
	Close() error
}

// LocalServer is what this process exposes to whichever successor
// eventually restarts it. ServerInstance implements it so an UDSRestarter
// can answer a future child's RPCs symmetrically to the calls it makes
// against its own parent.
type LocalServer interface {
	ShutdownAdmin() (originalStartTime time.Time, err error)
	DuplicateListenSocket(addr string) (net.Listener, bool)
	Stats() (memoryAllocated uint64, numConnections int)
	DrainListeners()
	Terminate()
	ShutdownSelf()
	Version() string
}

const rpcTimeout = 5 * time.Second

// UDSRestarter is the only Restarter implementation: a Unix-domain
// datagram socket bound at socketPath(basePath, epoch), talking to the
// previous epoch's socket as a client and answering the next epoch's
// requests as a server, both over the same socket.
type UDSRestarter struct {
	epoch      int
	conn       *net.UnixConn
	parentAddr *net.UnixAddr
	selfPath   string

	local LocalServer

	mu        sync.Mutex
	pending   chan response
	pendingFD net.Listener
	closed    chan struct{}
}

// NewUDSRestarter binds this process's own hot-restart socket. epoch 0
// means "no parent": parentAddr is left nil and every parent-facing call
// below becomes a no-op. basePath is shared across every epoch of one
// logical server; sockets are basePath-0, basePath-1, basePath-2, ...
func NewUDSRestarter(basePath string, epoch int) (*UDSRestarter, error) {
	selfPath := socketPath(basePath, epoch)
	addr := &net.UnixAddr{Name: selfPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("hotrestart: bind %s: %w", selfPath, err)
	}

	r := &UDSRestarter{
		epoch:    epoch,
		conn:     conn,
		selfPath: selfPath,
		closed:   make(chan struct{}),
	}
	if epoch > 0 {
		r.parentAddr = &net.UnixAddr{Name: socketPath(basePath, epoch-1), Net: "unixgram"}
	}
	return r, nil
}

// Initialize starts the RPC server loop and records the local callbacks it
// answers incoming requests with. d is accepted to match spec.md §4.6 step
// 2's literal signature; every handler this restarter runs executes on its
// own goroutine, not d's loop — callers needing loop-affinity post from
// inside their LocalServer methods themselves.
func (r *UDSRestarter) Initialize(d *dispatcher.Dispatcher, local LocalServer) error {
	r.local = local
	go r.serve()
	return nil
}

// Close stops the server loop and releases the socket.
func (r *UDSRestarter) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return r.conn.Close()
}

func (r *UDSRestarter) serve() {
	buf := make([]byte, maxDatagram)
	oob := make([]byte, maxOOB)

	for {
		n, oobn, _, from, err := r.conn.ReadMsgUnix(buf, oob)
		select {
		case <-r.closed:
			return
		default:
		}
		if err != nil {
			return
		}

		kind, rest := decodeKind(buf[:n])
		switch kind {
		case kindResponse:
			resp, err := decodeResponse(rest)
			if err != nil {
				continue
			}
			if resp.HasFD {
				ln, ferr := recvFD(oob[:oobn])
				if ferr == nil {
					r.deliverWithFD(resp, ln)
					continue
				}
			}
			r.deliver(resp)
		case kindRequest:
			req, err := decodeRequest(rest)
			if err != nil {
				continue
			}
			r.handle(req, from)
		}
	}
}

func (r *UDSRestarter) deliver(resp response) {
	r.mu.Lock()
	ch := r.pending
	r.mu.Unlock()
	if ch != nil {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (r *UDSRestarter) deliverWithFD(resp response, ln net.Listener) {
	r.mu.Lock()
	r.pendingFD = ln
	r.mu.Unlock()
	r.deliver(resp)
}

func (r *UDSRestarter) handle(req request, from *net.UnixAddr) {
	if r.local == nil || from == nil {
		return
	}

	var resp response
	var oob []byte
	var releaseFD func()

	switch req.Op {
	case opShutdownParentAdmin:
		t, err := r.local.ShutdownAdmin()
		resp = response{OK: err == nil, OriginalStartTime: t, Err: errString(err)}
	case opDuplicateParentListenSocket:
		ln, ok := r.local.DuplicateListenSocket(req.Addr)
		if !ok {
			resp = response{OK: true, HasFD: false}
		} else {
			o, release, err := sendFD(ln)
			if err != nil {
				resp = response{OK: false, Err: err.Error()}
			} else {
				resp = response{OK: true, HasFD: true}
				oob = o
				releaseFD = release
			}
		}
	case opGetParentStats:
		mem, conns := r.local.Stats()
		resp = response{OK: true, MemoryAllocated: mem, NumConnections: conns}
	case opDrainParentListeners:
		r.local.DrainListeners()
		resp = response{OK: true}
	case opTerminateParent:
		r.local.Terminate()
		resp = response{OK: true}
	case opShutdown:
		r.local.ShutdownSelf()
		resp = response{OK: true}
	case opVersion:
		resp = response{OK: true, Version: r.local.Version()}
	default:
		resp = response{OK: false, Err: "hotrestart: unknown op"}
	}

	data, err := encodeResponse(resp)
	if err == nil {
		_, _, _ = r.conn.WriteMsgUnix(data, oob, from)
	}
	if releaseFD != nil {
		releaseFD()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// call is the shared synchronous client path every parent-facing method
// below uses: send one request datagram, wait for exactly one response
// with a deadline, decode it.
func (r *UDSRestarter) call(req request) (response, error) {
	if r.parentAddr == nil {
		return response{OK: true}, nil
	}

	ch := make(chan response, 1)
	r.mu.Lock()
	r.pending = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.pending == ch {
			r.pending = nil
		}
		r.mu.Unlock()
	}()

	data, err := encodeRequest(req)
	if err != nil {
		return response{}, err
	}
	if _, _, err := r.conn.WriteMsgUnix(data, nil, r.parentAddr); err != nil {
		return response{}, fmt.Errorf("hotrestart: send to parent: %w", err)
	}

	select {
	case resp := <-ch:
		if !resp.OK {
			return resp, fmt.Errorf("hotrestart: parent returned error: %s", resp.Err)
		}
		return resp, nil
	case <-time.After(rpcTimeout):
		return response{}, fmt.Errorf("hotrestart: timed out waiting for parent")
	}
}

func (r *UDSRestarter) ShutdownParentAdmin() (time.Time, error) {
	resp, err := r.call(request{Op: opShutdownParentAdmin})
	return resp.OriginalStartTime, err
}

// DuplicateParentListenSocket asks the parent for its fd bound to addr. A
// nil, nil return means there is no parent, or the parent has no such
// listener — the caller must bind fresh, matching spec.md §4.6 step 13's
// "-1 means bind fresh".
func (r *UDSRestarter) DuplicateParentListenSocket(addr string) (net.Listener, error) {
	if r.parentAddr == nil {
		return nil, nil
	}
	resp, err := r.call(request{Op: opDuplicateParentListenSocket, Addr: addr})
	if err != nil {
		return nil, err
	}
	if !resp.HasFD {
		return nil, nil
	}
	r.mu.Lock()
	ln := r.pendingFD
	r.pendingFD = nil
	r.mu.Unlock()
	if ln == nil {
		return nil, fmt.Errorf("hotrestart: response carried HasFD but no listener was delivered")
	}
	return ln, nil
}

func (r *UDSRestarter) GetParentStats() (uint64, int, error) {
	resp, err := r.call(request{Op: opGetParentStats})
	return resp.MemoryAllocated, resp.NumConnections, err
}

func (r *UDSRestarter) DrainParentListeners() error {
	_, err := r.call(request{Op: opDrainParentListeners})
	return err
}

func (r *UDSRestarter) TerminateParent() error {
	_, err := r.call(request{Op: opTerminateParent})
	return err
}

func (r *UDSRestarter) Shutdown() error {
	_, err := r.call(request{Op: opShutdown})
	return err
}

func (r *UDSRestarter) Version() string {
	resp, err := r.call(request{Op: opVersion})
	if err != nil {
		return ""
	}
	return resp.Version
}
