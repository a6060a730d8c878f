package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/hashscan/internal/batch"
	"github.com/sydlexius/hashscan/internal/event"
	"github.com/sydlexius/hashscan/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeRunner records the queue contents at each run and completes nothing.
type fakeRunner struct {
	mu   sync.Mutex
	runs [][]string
	ran  chan struct{}
}

func newFakeRunner() *fakeRunner { return &fakeRunner{ran: make(chan struct{}, 10)} }

func (f *fakeRunner) Run(_ context.Context, q *queue.Queue) batch.Summary {
	var names []string
	for _, it := range q.Items() {
		names = append(names, it.Name())
	}
	f.mu.Lock()
	f.runs = append(f.runs, names)
	f.mu.Unlock()
	f.ran <- struct{}{}
	return batch.Summary{Total: len(names)}
}

func (f *fakeRunner) lastRun() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[len(f.runs)-1]
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestService_EnqueuesNewFilesAndRunsBatch(t *testing.T) {
	dir := t.TempDir()
	q := queue.New()
	runner := newFakeRunner()
	rec := &recorder{}
	svc := NewService(dir, q, runner, testLogger(), WithDebounce(50*time.Millisecond), WithPublisher(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	// Give the watcher time to check fsnotify and register.
	time.Sleep(300 * time.Millisecond)
	for _, name := range []string{"b.txt", "a.txt", ".swp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("batch never ran")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := runner.lastRun()
	if len(got) != 2 || got[0] != "a.txt" || got[1] != "b.txt" {
		t.Errorf("queued = %v, want [a.txt b.txt]", got)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 2 || rec.events[0].Type != event.FileQueued {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestService_StartRejectsMissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "missing"), queue.New(), newFakeRunner(), testLogger())
	if err := svc.Start(context.Background()); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestService_HandleFSEvent(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "Results")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	svc := NewService(dir, queue.New(), newFakeRunner(), testLogger())

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create file", fsnotify.Event{Name: file, Op: fsnotify.Create}, true},
		{"write file", fsnotify.Event{Name: file, Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: file, Op: fsnotify.Chmod}, false},
		{"directory", fsnotify.Event{Name: sub, Op: fsnotify.Create}, false},
		{"hidden", fsnotify.Event{Name: filepath.Join(dir, ".tmp"), Op: fsnotify.Create}, false},
		{"outside dir", fsnotify.Event{Name: filepath.Join(sub, "x.json"), Op: fsnotify.Create}, false},
		{"vanished", fsnotify.Event{Name: filepath.Join(dir, "gone"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.handleFSEvent(tt.ev); got != tt.want {
				t.Errorf("handleFSEvent = %v, want %v", got, tt.want)
			}
		})
	}

	svc.handleFSEvent(fsnotify.Event{Name: file, Op: fsnotify.Remove})
	if _, ok := svc.pending[file]; ok {
		t.Error("removed file should no longer be pending")
	}
}

func TestService_Poll(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(old, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewService(dir, queue.New(), newFakeRunner(), testLogger())
	svc.snapshot = svc.scanDir()

	if svc.poll() {
		t.Error("unchanged directory reported changes")
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(old, later, later); err != nil {
		t.Fatal(err)
	}
	if !svc.poll() {
		t.Fatal("expected changes")
	}
	if len(svc.pending) != 2 {
		t.Errorf("pending = %v, want old.txt and new.txt", svc.pending)
	}
}

func TestService_FlushSkipsUnhashableAndEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	runner := newFakeRunner()
	q := queue.New()
	svc := NewService(dir, q, runner, testLogger())

	svc.pending[filepath.Join(dir, "deleted-before-flush")] = struct{}{}
	svc.flush(context.Background())

	if q.Len() != 0 {
		t.Errorf("queue len = %d", q.Len())
	}
	select {
	case <-runner.ran:
		t.Error("batch should not run for an empty queue")
	default:
	}
}

func TestService_FlushRetriesRetainedItems(t *testing.T) {
	runner := newFakeRunner()
	q := queue.New()
	q.Add(queue.NewItem("/elsewhere/retained.bin", "abcd1234"))
	svc := NewService(t.TempDir(), q, runner, testLogger())

	svc.flush(context.Background())

	select {
	case <-runner.ran:
	default:
		t.Fatal("expected a batch for the retained item")
	}
	if got := runner.lastRun(); len(got) != 1 || got[0] != "retained.bin" {
		t.Errorf("run = %v", got)
	}
}

func TestService_RetriesRetainedItemsWhileQuiet(t *testing.T) {
	dir := t.TempDir()
	leftover := filepath.Join(t.TempDir(), "leftover.bin")
	if err := os.WriteFile(leftover, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	q := queue.New()
	if _, err := q.Enqueue(leftover); err != nil {
		t.Fatal(err)
	}
	runner := newFakeRunner()
	svc := NewService(dir, q, runner, testLogger(),
		WithDebounce(time.Hour),
		WithRetryInterval(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("retained item never retried")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := runner.lastRun(); len(got) != 1 || got[0] != "leftover.bin" {
		t.Errorf("retried = %v, want [leftover.bin]", got)
	}
}

func TestService_RetryTickSkipsEmptyQueue(t *testing.T) {
	runner := newFakeRunner()
	svc := NewService(t.TempDir(), queue.New(), runner, testLogger(),
		WithDebounce(time.Hour),
		WithRetryInterval(20*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case <-runner.ran:
		t.Error("batch ran with nothing queued")
	case <-time.After(500 * time.Millisecond):
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
}
