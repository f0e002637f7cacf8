// Package netconn is the worker-side half of the proxy's connection
// lifecycle: ListenSocket (one bound fd, shared across every worker that
// serves it), ActiveListener (one worker's accept loop against that fd),
// Connection (an intrusive doubly-linked list node for O(1) removal), and
// ConnectionHandler (the per-worker owner of both the listener set and the
// live connection list). Everything downstream of "a byte stream is open"
// — protocol parsing, routing, filters — is out of scope; see
// FilterChainFactory for the seam a caller hooks real protocol handling
// into.
package netconn
