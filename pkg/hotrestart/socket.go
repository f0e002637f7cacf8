package hotrestart

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

func socketPath(base string, epoch int) string {
	return fmt.Sprintf("%s-%d", base, epoch)
}

const maxDatagram = 4096
const maxOOB = 64 // enough for one syscall.UnixRights(fd)

// sendFD duplicates ln's file descriptor and returns oob bytes ready to
// attach to a WriteMsgUnix call, plus a close function the caller must run
// once the write has completed (the duplicate is only needed for the
// duration of the syscall; the kernel install a new descriptor in the
// receiving process).
func sendFD(ln net.Listener) ([]byte, func(), error) {
	type fileProvider interface {
		File() (*os.File, error)
	}
	fp, ok := ln.(fileProvider)
	if !ok {
		return nil, nil, fmt.Errorf("hotrestart: listener type %T cannot be duplicated", ln)
	}
	f, err := fp.File()
	if err != nil {
		return nil, nil, err
	}
	oob := syscall.UnixRights(int(f.Fd()))
	return oob, func() { _ = f.Close() }, nil
}

// recvFD extracts a duplicated listener fd from oob control data received
// alongside an RPC response, and wraps it as a TCP listener sharing the
// sender's underlying socket.
func recvFD(oob []byte) (net.Listener, error) {
	scms, err := syscall.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	for _, scm := range scms {
		fds, err := syscall.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			f := os.NewFile(uintptr(fd), "hot-restart-listener")
			ln, err := net.FileListener(f)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			return ln, nil
		}
	}
	return nil, fmt.Errorf("hotrestart: response flagged HasFD but no SCM_RIGHTS found")
}
