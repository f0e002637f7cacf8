// Package metrics provides the process-wide stats store: get-or-create
// Counter/Gauge by name, backed by a Prometheus registry, with the
// used()/latch() semantics spec.md §4.6's stats-flush timer needs to push
// per-interval deltas to an external StatSink (statsd over UDP here)
// without republishing stats nothing ever touched.
package metrics
