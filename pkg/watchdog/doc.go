// See watchdog.go and guarddog.go. Touch and the tick loop both read
// time.Now(); Go attaches a monotonic clock reading to every time.Time and
// time.Since/Sub use it automatically, so a wall-clock step (NTP correction,
// manual clock set) can't produce a false miss the way a naive
// wall-clock-only port would. Register/deregister take an internal lock
// held only across the map mutation and the tick's snapshot copy.
package watchdog
