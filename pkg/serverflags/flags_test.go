package serverflags

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheckDrain(t *testing.T) {
	dir := t.TempDir()
	if CheckDrain(dir) {
		t.Fatal("expected no drain flag in a fresh directory")
	}

	if err := os.WriteFile(filepath.Join(dir, DrainFlagName), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !CheckDrain(dir) {
		t.Fatal("expected drain flag to be detected")
	}
}

func TestWatcher_NotifiesOnFlagAppearAndDisappear(t *testing.T) {
	dir := t.TempDir()
	events := make(chan bool, 8)

	w, err := New(dir, 20*time.Millisecond, func(draining bool) { events <- draining })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	flagPath := filepath.Join(dir, DrainFlagName)
	if err := os.WriteFile(flagPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case draining := <-events:
		if !draining {
			t.Fatal("expected draining=true after flag file created")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain-flag-created notification")
	}

	if err := os.Remove(flagPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	select {
	case draining := <-events:
		if draining {
			t.Fatal("expected draining=false after flag file removed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain-flag-removed notification")
	}
}
