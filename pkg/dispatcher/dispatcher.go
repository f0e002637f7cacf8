// Package dispatcher implements the single-threaded event loop every thread
// in this process runs: main, each Worker, nothing else. Its four
// operations — run, exit, post, createTimer — are spec.md's entire
// cross-thread contract (§5, GLOSSARY). No other primitive is permitted to
// mutate another thread's state.
package dispatcher

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/heliosproxy/helios/pkg/sched"
)

// Dispatcher is a single-threaded, cooperative event loop. All of its
// methods except Post, Exit and ListenForSignal are intended to be called
// only from the goroutine running Run; Post, Exit (which itself posts) and
// ListenForSignal are the operations safe to call from any other goroutine
// or OS thread.
type Dispatcher struct {
	mu       sync.Mutex
	queue    []func()
	wake     chan struct{}
	stopped  bool
	running  bool
	sched    *sched.Scheduler
	sigStops []func()
}

// New creates a Dispatcher. It does not start running until Run is called.
func New() *Dispatcher {
	return &Dispatcher{
		wake:  make(chan struct{}, 1),
		sched: sched.New(),
	}
}

// Post enqueues fn to run on this dispatcher's loop and wakes it if it is
// blocked waiting for work. Posts to a single Dispatcher execute in FIFO
// order; there is no ordering guarantee across different Dispatchers.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run blocks, processing posted tasks in FIFO order, until Exit is called.
// This is the loop's only suspension point.
func (d *Dispatcher) Run() {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	for {
		d.drain()

		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if stopped {
			break
		}

		<-d.wake
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// drain runs every task currently queued, under the loop's single goroutine.
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		task()
	}
}

// Exit posts a task that marks the loop stopped; Run returns once that task
// (and anything queued ahead of it) has run. It may be called from any
// goroutine, matching spec.md's "exit() posts a loop-exit task".
func (d *Dispatcher) Exit() {
	d.Post(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
	})
}

// IsRunning reports whether Run is currently looping.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Timer is a handle returned by CreateTimer.
type Timer struct {
	inner *sched.Timer
}

// Stop cancels the timer.
func (t *Timer) Stop() {
	if t != nil {
		t.inner.Stop()
	}
}

// CreateTimer arms a recurring timer. The callback always runs marshalled
// onto this dispatcher's loop via Post, never directly from the scheduler's
// own goroutine — every dispatcher-owned object's methods must only ever
// execute on their home loop.
func (d *Dispatcher) CreateTimer(interval time.Duration, fn func()) *Timer {
	return &Timer{inner: d.sched.Every(interval, func() { d.Post(fn) })}
}

// CreateOneShotTimer arms a one-shot timer, also marshalled via Post.
func (d *Dispatcher) CreateOneShotTimer(delay time.Duration, fn func()) *Timer {
	return &Timer{inner: d.sched.After(delay, func() { d.Post(fn) })}
}

// ListenForSignal registers fn to run, marshalled onto this dispatcher, when
// sig is delivered to the process. It returns a function that stops
// listening. Matches spec.md §4.6 step 14: signals originate outside any
// dispatcher and are posted as tasks onto the main loop.
func (d *Dispatcher) ListenForSignal(sig os.Signal, fn func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	doneCh := make(chan struct{})

	go func() {
		for {
			select {
			case <-ch:
				d.Post(fn)
			case <-doneCh:
				signal.Stop(ch)
				return
			}
		}
	}()

	stopFn := func() { close(doneCh) }
	d.mu.Lock()
	d.sigStops = append(d.sigStops, stopFn)
	d.mu.Unlock()
	return stopFn
}

// Close stops the timer scheduler and every registered signal listener.
// Call after Run has returned.
func (d *Dispatcher) Close() {
	d.sched.Stop()
	d.mu.Lock()
	stops := d.sigStops
	d.sigStops = nil
	d.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
