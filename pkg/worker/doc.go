// See worker.go. A Worker's identity (ID, and its place in whatever
// thread-indexed slices the owner keeps) is fixed by New, before any
// goroutine exists; InitializeConfiguration is the only thing that starts
// the loop. State crosses from the worker's own goroutine to anyone else
// exclusively through Dispatcher().Post — the one exception, per spec.md
// §4.5's invariant, is the ListenSocket map handed in by
// InitializeConfiguration, treated as read-only.
package worker
