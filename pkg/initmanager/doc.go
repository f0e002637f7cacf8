// See initmanager.go. The barrier is deliberately dumb: a counter plus a
// stored continuation. No coroutines or tasks are needed in Go — a closure
// captured by each target's done callback does the job.
package initmanager
