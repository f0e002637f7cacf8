// See flags.go. CheckDrain is a synchronous stat, suitable for the startup
// check spec.md §4.6 step 6 names; Watcher is the live-update path for a
// running process (health check flips without a restart when an operator
// touches or removes the flag file).
package serverflags
