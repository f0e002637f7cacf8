package hotrestart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// opCode identifies one of the RPC operations spec.md §6's hot-restart
// contract names. The wire format is deliberately small and binary: a
// one-byte message kind, then a gob-encoded payload carrying the op — gob
// because both ends are always this same Go binary (never a different
// language or version), which is exactly gob's sweet spot.
type opCode byte

const (
	opInitialize opCode = iota
	opShutdownParentAdmin
	opDuplicateParentListenSocket
	opGetParentStats
	opDrainParentListeners
	opTerminateParent
	opShutdown
	opVersion
)

type messageKind byte

const (
	kindRequest messageKind = iota
	kindResponse
)

// request is the payload of every outbound RPC call. Addr is only
// meaningful for opDuplicateParentListenSocket.
type request struct {
	Op   opCode
	Addr string
}

// response is the payload of every RPC reply. HasFD indicates an
// accompanying SCM_RIGHTS ancillary message carries a duplicated listener
// fd — encodeResponse/decodeResponse never put the fd itself in the gob
// payload, only the flag.
type response struct {
	OK                bool
	Err               string
	OriginalStartTime time.Time
	MemoryAllocated   uint64
	NumConnections    int
	Version           string
	HasFD             bool
}

func encodeRequest(r request) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(kindRequest))
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeResponse(r response) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(kindResponse))
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeKind(data []byte) (messageKind, []byte) {
	if len(data) == 0 {
		return kindRequest, nil
	}
	return messageKind(data[0]), data[1:]
}

func decodeRequest(data []byte) (request, error) {
	var r request
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	return r, err
}

func decodeResponse(data []byte) (response, error) {
	var r response
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r)
	return r, err
}
