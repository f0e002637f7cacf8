// Package sched backs the dispatcher's createTimer with two primitives drawn
// from the example corpus's scheduling idioms: a cron.Cron running
// fixed-interval jobs for anything recurring (the teacher's
// evidence/retention.Scheduler drove a daily prune job the same way; here it
// drives watchdog touch timers, the GuardDog tick loop, and the stats-flush
// timer), and a time.AfterFunc one-shot for anything that fires exactly once
// (the teacher's policy/manager.Debouncer used the same primitive).
package sched

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler owns one cron.Cron instance and hands out Timer handles for
// recurring work. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// New creates a Scheduler. The underlying cron.Cron is not started until
// the first Every call or an explicit Start.
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Start begins running scheduled jobs. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop stops the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		ctx := c.Stop()
		<-ctx.Done()
	}
}

// intervalSchedule is a cron.Schedule that fires exactly every d. cron's own
// "@every" spec rounds any interval below one second up to one second,
// which the sub-second touch and tick timers cannot use.
type intervalSchedule time.Duration

func (d intervalSchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// Every schedules fn to run every interval, at full (sub-second) precision.
// It starts the scheduler if this is the first job. The returned Timer's
// Stop removes just this job.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Timer {
	s.mu.Lock()
	id := s.cron.Schedule(intervalSchedule(interval), cron.FuncJob(fn))
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	s.mu.Unlock()

	return &Timer{scheduler: s, entryID: id}
}

// After schedules fn to run exactly once after d, returning a Timer whose
// Stop cancels it if it hasn't fired yet.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	t := time.AfterFunc(d, fn)
	return &Timer{oneShot: t}
}

// Timer is a handle to a scheduled job, recurring or one-shot.
type Timer struct {
	scheduler *Scheduler
	entryID   cron.EntryID
	oneShot   *time.Timer
}

// Stop cancels the timer. Safe to call more than once.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	if t.oneShot != nil {
		t.oneShot.Stop()
		return
	}
	if t.scheduler != nil {
		t.scheduler.mu.Lock()
		t.scheduler.cron.Remove(t.entryID)
		t.scheduler.mu.Unlock()
	}
}
