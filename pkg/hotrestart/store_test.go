package hotrestart

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStore_OriginalStartTimeRoundTrip(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	got, err := s.OriginalStartTime()
	if err != nil {
		t.Fatalf("OriginalStartTime on empty store: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero time before anything is set, got %v", got)
	}

	want := time.Now().Truncate(time.Nanosecond)
	if err := s.SetOriginalStartTime(want); err != nil {
		t.Fatalf("SetOriginalStartTime: %v", err)
	}
	got, err = s.OriginalStartTime()
	if err != nil {
		t.Fatalf("OriginalStartTime: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("OriginalStartTime() = %v, want %v", got, want)
	}
}

func TestStore_LastFlushedStatsRoundTrip(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if err := s.SetLastFlushedStats(2048, 42); err != nil {
		t.Fatalf("SetLastFlushedStats: %v", err)
	}
	mem, conns, err := s.LastFlushedStats()
	if err != nil {
		t.Fatalf("LastFlushedStats: %v", err)
	}
	if mem != 2048 || conns != 42 {
		t.Fatalf("LastFlushedStats() = (%d, %d), want (2048, 42)", mem, conns)
	}
}

func TestStore_WorkerLivenessRoundTrip(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	zero, err := s.WorkerLastTouch(3)
	if err != nil {
		t.Fatalf("WorkerLastTouch before any touch: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero time, got %v", zero)
	}

	before := time.Now()
	if err := s.TouchWorker(3); err != nil {
		t.Fatalf("TouchWorker: %v", err)
	}
	got, err := s.WorkerLastTouch(3)
	if err != nil {
		t.Fatalf("WorkerLastTouch: %v", err)
	}
	if got.Before(before.Add(-time.Second)) {
		t.Fatalf("WorkerLastTouch() = %v, want close to now (%v)", got, before)
	}
}
