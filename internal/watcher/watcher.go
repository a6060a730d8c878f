// Package watcher feeds a directory's new and changed files into the scan
// queue and runs a batch once writes settle.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/hashscan/internal/batch"
	"github.com/sydlexius/hashscan/internal/event"
	"github.com/sydlexius/hashscan/internal/queue"
)

// BatchRunner runs one batch over a queue.
type BatchRunner interface {
	Run(ctx context.Context, q *queue.Queue) batch.Summary
}

// Service watches one directory. Enqueueing and batch runs both happen on
// the Start goroutine, so the queue has a single writer.
type Service struct {
	dir          string
	queue        *queue.Queue
	runner       BatchRunner
	publisher    event.Publisher
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	// retryInterval re-runs the batch for retained items while the
	// directory is quiet. Zero disables it.
	retryInterval time.Duration
	notifyTimeout time.Duration

	pending  map[string]struct{}
	snapshot map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDebounce sets how long the directory must be quiet before a batch.
func WithDebounce(d time.Duration) Option {
	return func(s *Service) { s.debounce = d }
}

// WithPollInterval sets the scan interval used when fsnotify is unavailable.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithRetryInterval sets how often items retained by a failed or partial
// batch are retried when no new files arrive. Zero disables the retry.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Service) { s.retryInterval = d }
}

// WithPublisher sends file.queued events to p.
func WithPublisher(p event.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a watcher for dir.
func NewService(dir string, q *queue.Queue, runner BatchRunner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		dir:           filepath.Clean(dir),
		queue:         q,
		runner:        runner,
		logger:        logger.With(slog.String("component", "fs-watcher")),
		debounce:      2 * time.Second,
		pollInterval:  30 * time.Second,
		retryInterval: 5 * time.Minute,
		notifyTimeout: 2 * time.Second,
		pending:       make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start blocks until ctx is canceled. If fsnotify does not work for the
// directory, it falls back to polling.
func (s *Service) Start(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("watch target is not a directory: " + s.dir)
	}

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	var pollCh, retryCh <-chan time.Time

	if w, err := s.openNotifier(); err == nil {
		defer w.Close() //nolint:errcheck
		eventCh, errCh = w.Events, w.Errors
		s.logger.Debug("fsnotify delivering events", slog.String("dir", s.dir))
	} else {
		s.logger.Warn("fsnotify unavailable, polling",
			slog.String("dir", s.dir),
			slog.Duration("interval", s.pollInterval),
			slog.String("reason", err.Error()),
		)
		s.snapshot = s.scanDir()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	if s.retryInterval > 0 {
		retry := time.NewTicker(s.retryInterval)
		defer retry.Stop()
		retryCh = retry.C
	}

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()
	resetDebounce := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
	}

	s.logger.Info("watching directory", slog.String("dir", s.dir))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return nil

		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if s.handleFSEvent(ev) {
				resetDebounce()
			}

		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", slog.String("error", err.Error()))

		case <-pollCh:
			if s.poll() {
				resetDebounce()
			}

		case <-debounceTimer.C:
			s.flush(ctx)

		case <-retryCh:
			// A pending debounce flushes retained items itself.
			if len(s.pending) == 0 && !s.queue.IsEmpty() {
				s.logger.Info("retrying retained items", slog.Int("retained", s.queue.Len()))
				s.flush(ctx)
			}
		}
	}
}

// handleFSEvent records created or written regular files and reports
// whether anything new is pending.
func (s *Service) handleFSEvent(ev fsnotify.Event) bool {
	if filepath.Dir(ev.Name) != s.dir || ignored(ev.Name) {
		return false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		delete(s.pending, ev.Name)
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	s.pending[ev.Name] = struct{}{}
	return true
}

// poll diffs the directory against the last snapshot.
func (s *Service) poll() bool {
	current := s.scanDir()
	changed := false
	for path, mod := range current {
		if prev, ok := s.snapshot[path]; !ok || !prev.Equal(mod) {
			s.pending[path] = struct{}{}
			changed = true
		}
	}
	s.snapshot = current
	return changed
}

func (s *Service) scanDir() map[string]time.Time {
	out := make(map[string]time.Time)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("reading watched directory", slog.String("error", err.Error()))
		return out
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || ignored(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(s.dir, e.Name())] = info.ModTime()
	}
	return out
}

// flush enqueues pending files in name order and runs a batch. Items left
// over from earlier batches are retried here too.
func (s *Service) flush(ctx context.Context) {
	paths := make([]string, 0, len(s.pending))
	for p := range s.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	clear(s.pending)

	for _, p := range paths {
		item, err := s.queue.Enqueue(p)
		if err != nil {
			s.logger.Warn("enqueueing file", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		s.logger.Debug("file queued", slog.String("item_id", item.ID.String()), slog.String("file", item.Name()))
		if s.publisher != nil {
			s.publisher.Publish(event.Event{Type: event.FileQueued, Timestamp: time.Now(), Item: item.DisplayText()})
		}
	}

	if s.queue.IsEmpty() {
		return
	}
	sum := s.runner.Run(ctx, s.queue)
	s.logger.Info("watch batch finished", slog.String("summary", sum.String()), slog.Int("retained", s.queue.Len()))
}

// ignored skips hidden files such as editor swap files and marker files.
func ignored(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
