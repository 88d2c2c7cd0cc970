package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

func TestObserveDebouncesAndFilters(t *testing.T) {
	w, err := New(Options{Dir: t.TempDir(), Glob: "*.csv", Debounce: time.Second}, func(context.Context, string) error { return nil })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	w.observe(fsnotify.Event{Name: "/in/b.csv", Op: fsnotify.Create})
	w.observe(fsnotify.Event{Name: "/in/a.csv", Op: fsnotify.Write})
	w.observe(fsnotify.Event{Name: "/in/a.xlsx", Op: fsnotify.Create})
	w.observe(fsnotify.Event{Name: "/in/.c.csv", Op: fsnotify.Create})
	w.observe(fsnotify.Event{Name: "/in/d.csv", Op: fsnotify.Remove})

	clock = clock.Add(500 * time.Millisecond)
	w.observe(fsnotify.Event{Name: "/in/b.csv", Op: fsnotify.Write})
	if got := w.settled(); len(got) != 0 {
		t.Fatalf("settled() before debounce = %v", got)
	}

	clock = clock.Add(600 * time.Millisecond)
	if d := cmp.Diff([]string{"/in/a.csv"}, w.settled()); d != "" {
		t.Fatalf("settled() mismatch (-want +got):\n%s", d)
	}

	clock = clock.Add(time.Second)
	if d := cmp.Diff([]string{"/in/b.csv"}, w.settled()); d != "" {
		t.Fatalf("settled() mismatch (-want +got):\n%s", d)
	}
}

func TestNewValidates(t *testing.T) {
	handler := func(context.Context, string) error { return nil }
	if _, err := New(Options{}, handler); err == nil {
		t.Fatalf("New() without dir expected error")
	}
	if _, err := New(Options{Dir: "x"}, nil); err == nil {
		t.Fatalf("New() without handler expected error")
	}
	if _, err := New(Options{Dir: "x", Glob: "["}, handler); err == nil {
		t.Fatalf("New() with bad glob expected error")
	}
}

func TestRunHandlesWrittenFile(t *testing.T) {
	dir := t.TempDir()
	handled := make(chan string, 1)
	w, err := New(Options{Dir: dir, Glob: "*.csv", Debounce: 50 * time.Millisecond}, func(ctx context.Context, path string) error {
		select {
		case handled <- path:
		case <-ctx.Done():
		}
		return nil
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	target := filepath.Join(dir, "day0.csv")
	deadline := time.After(5 * time.Second)
	// Write until the watcher is registered and reports the file.
	for {
		if err := os.WriteFile(target, []byte("HB\nA\n"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		select {
		case got := <-handled:
			if got != target {
				t.Fatalf("handled %q, want %q", got, target)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for watched file")
		}
	}
}
