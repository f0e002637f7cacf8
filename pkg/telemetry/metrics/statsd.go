package metrics

import (
	"fmt"
	"net"
)

// StatSink is the external push target for FlushTo. spec.md §6 names two:
// statsd over UDP, and TCP-over-upstream-cluster (an admin/cluster-manager
// concern this core does not implement). Only the UDP sink is built here.
type StatSink interface {
	FlushCounter(name string, delta uint64)
	FlushGauge(name string, value int64)
}

// StatsdUDPSink writes DogStatsD-style lines to a UDP statsd endpoint.
// Errors are swallowed: a stats sink being briefly unreachable must never
// stall or crash the server.
type StatsdUDPSink struct {
	conn *net.UDPConn
}

// NewStatsdUDPSink resolves addr and opens a UDP socket connected to it.
func NewStatsdUDPSink(addr string) (*StatsdUDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: resolve statsd address %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("metrics: dial statsd %q: %w", addr, err)
	}
	return &StatsdUDPSink{conn: conn}, nil
}

func (s *StatsdUDPSink) FlushCounter(name string, delta uint64) {
	_, _ = s.conn.Write([]byte(fmt.Sprintf("%s:%d|c\n", name, delta)))
}

func (s *StatsdUDPSink) FlushGauge(name string, value int64) {
	_, _ = s.conn.Write([]byte(fmt.Sprintf("%s:%d|g\n", name, value)))
}

// Close releases the underlying socket.
func (s *StatsdUDPSink) Close() error {
	return s.conn.Close()
}
