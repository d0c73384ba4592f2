package runlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcherValidation(t *testing.T) {
	if _, err := NewWatcher(nil); err == nil {
		t.Error("NewWatcher(nil) accepted")
	}
	if _, err := NewWatcher(&WatcherConfig{}); err == nil {
		t.Error("NewWatcher() accepted empty dir")
	}

	w, err := NewWatcher(&WatcherConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if w.pattern != "*.json" {
		t.Errorf("default pattern = %q, want *.json", w.pattern)
	}
	if w.settle != 500*time.Millisecond {
		t.Errorf("default settle = %v, want 500ms", w.settle)
	}
}

func TestWatcherEmitsSettledFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(&WatcherConfig{
		Dir:    dir,
		Settle: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		cancel()
		w.Close()
	}()

	runPath := filepath.Join(dir, "run1.json")
	if err := os.WriteFile(runPath, []byte(`{"winner_id":"p1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// Files not matching the pattern never surface.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Files():
		if got != runPath {
			t.Errorf("emitted %q, want %q", got, runPath)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no file emitted within 5s")
	}

	select {
	case got := <-w.Files():
		t.Errorf("unexpected second emission %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStartTwice(t *testing.T) {
	w, err := NewWatcher(&WatcherConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		w.Close()
	}()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start() accepted")
	}
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := NewWatcher(&WatcherConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first := w.Close()
	second := w.Close()
	if second != first {
		t.Errorf("second Close() = %v, want %v", second, first)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("Start() accepted after Close()")
	}
}

func TestWatcherCloseUnblocksWithoutCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(&WatcherConfig{
		Dir:        dir,
		Settle:     10 * time.Millisecond,
		BufferSize: 1,
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	// The context stays live and nothing drains Files, so the loop ends up
	// parked on a full channel. Close alone must still shut it down.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "run"+string(rune('0'+i))+".json")
		if err := os.WriteFile(name, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- w.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Close() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not return within 5s")
	}

	for range w.Files() {
	}
}
