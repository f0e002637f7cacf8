// Package hotrestart implements spec.md §6's hot-restart RPC contract: a
// Unix-domain datagram socket per restart epoch, binary request/reply
// framing, and SCM_RIGHTS fd passing for listen-socket inheritance. Store
// is the pure-Go, cgo-free substitute for the shared-memory region the
// original design persists original_start_time, flushed stats, and
// per-worker liveness in.
package hotrestart
