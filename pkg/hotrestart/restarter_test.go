package hotrestart

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/heliosproxy/helios/pkg/dispatcher"
)

type fakeLocalServer struct {
	startTime time.Time
	listener  net.Listener
	mem       uint64
	conns     int
	drained   bool
	terminated bool
	version   string
}

func (f *fakeLocalServer) ShutdownAdmin() (time.Time, error) { return f.startTime, nil }
func (f *fakeLocalServer) DuplicateListenSocket(addr string) (net.Listener, bool) {
	if f.listener == nil {
		return nil, false
	}
	return f.listener, true
}
func (f *fakeLocalServer) Stats() (uint64, int) { return f.mem, f.conns }
func (f *fakeLocalServer) DrainListeners()      { f.drained = true }
func (f *fakeLocalServer) Terminate()           { f.terminated = true }
func (f *fakeLocalServer) ShutdownSelf()        {}
func (f *fakeLocalServer) Version() string      { return f.version }

func TestUDSRestarter_EpochZeroHasNoParent(t *testing.T) {
	base := filepath.Join(t.TempDir(), "helios_hot_restart")
	r, err := NewUDSRestarter(base, 0)
	if err != nil {
		t.Fatalf("NewUDSRestarter: %v", err)
	}
	defer r.Close()

	if err := r.Initialize(dispatcher.New(), &fakeLocalServer{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ln, err := r.DuplicateParentListenSocket("tcp://127.0.0.1:0")
	if err != nil || ln != nil {
		t.Fatalf("epoch 0 should have no parent: ln=%v err=%v", ln, err)
	}
	if v := r.Version(); v != "" {
		t.Fatalf("epoch 0 Version() = %q, want empty", v)
	}
}

func TestUDSRestarter_ChildTalksToParent(t *testing.T) {
	base := filepath.Join(t.TempDir(), "helios_hot_restart")

	parentStart := time.Now().Add(-time.Hour).Truncate(time.Second)
	parentListener := &fakeLocalServer{
		startTime: parentStart,
		mem:       1024,
		conns:     7,
		version:   "abc123",
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()
	parentListener.listener = ln

	parent, err := NewUDSRestarter(base, 0)
	if err != nil {
		t.Fatalf("NewUDSRestarter(parent): %v", err)
	}
	defer parent.Close()
	if err := parent.Initialize(dispatcher.New(), parentListener); err != nil {
		t.Fatalf("parent.Initialize: %v", err)
	}

	child, err := NewUDSRestarter(base, 1)
	if err != nil {
		t.Fatalf("NewUDSRestarter(child): %v", err)
	}
	defer child.Close()
	if err := child.Initialize(dispatcher.New(), &fakeLocalServer{}); err != nil {
		t.Fatalf("child.Initialize: %v", err)
	}

	gotStart, err := child.ShutdownParentAdmin()
	if err != nil {
		t.Fatalf("ShutdownParentAdmin: %v", err)
	}
	if !gotStart.Equal(parentStart) {
		t.Fatalf("original start time = %v, want %v", gotStart, parentStart)
	}

	mem, conns, err := child.GetParentStats()
	if err != nil {
		t.Fatalf("GetParentStats: %v", err)
	}
	if mem != 1024 || conns != 7 {
		t.Fatalf("GetParentStats = (%d, %d), want (1024, 7)", mem, conns)
	}

	if err := child.DrainParentListeners(); err != nil {
		t.Fatalf("DrainParentListeners: %v", err)
	}
	if !parentListener.drained {
		t.Fatal("expected parent's DrainListeners to have run")
	}

	if err := child.TerminateParent(); err != nil {
		t.Fatalf("TerminateParent: %v", err)
	}
	if !parentListener.terminated {
		t.Fatal("expected parent's Terminate to have run")
	}

	dup, err := child.DuplicateParentListenSocket(ln.Addr().String())
	if err != nil {
		t.Fatalf("DuplicateParentListenSocket: %v", err)
	}
	if dup == nil {
		t.Fatal("expected a duplicated listener, got nil")
	}
	defer dup.Close()
	if dup.Addr().String() != ln.Addr().String() {
		t.Fatalf("duplicated listener addr = %s, want %s", dup.Addr(), ln.Addr())
	}
}
