// Package batch drives one pass over the scan queue: each queued item is
// looked up in insertion order, completed reports are saved and announced,
// and everything else stays queued for the next pass.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/hashscan/internal/event"
	"github.com/sydlexius/hashscan/internal/lookup"
	"github.com/sydlexius/hashscan/internal/notify"
	"github.com/sydlexius/hashscan/internal/queue"
	"github.com/sydlexius/hashscan/internal/report"
)

// DefaultItemTimeout bounds a single lookup.
const DefaultItemTimeout = 60 * time.Second

// Lookuper fetches a report for a digest.
type Lookuper interface {
	FetchReport(ctx context.Context, digest string) (lookup.Report, error)
}

// Store persists a report payload under a file name.
type Store interface {
	Save(name string, payload []byte) (report.Paths, error)
}

// Runner processes queue snapshots. It is not safe for concurrent Run calls
// against the same queue.
type Runner struct {
	lookup    Lookuper
	store     Store
	notifier  notify.Notifier
	publisher event.Publisher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier announces each saved report.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithPublisher sends progress events to p.
func WithPublisher(p event.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithTimeout sets the per-item lookup deadline. Non-positive values keep
// the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner that looks items up with lk and saves reports
// to store.
func NewRunner(lk Lookuper, store Store, opts ...Option) *Runner {
	r := &Runner{
		lookup:  lk,
		store:   store,
		timeout: DefaultItemTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With(slog.String("component", "batch"))
	return r
}

// Run processes the items queued when it starts, one at a time. Completed
// items are removed from q. Cancelling ctx stops the run after the current
// item, which stays queued.
func (r *Runner) Run(ctx context.Context, q *queue.Queue) Summary {
	start := r.now()
	items := q.Items()
	s := Summary{
		RunID:    uuid.NewString(),
		Total:    len(items),
		Outcomes: make([]Outcome, 0, len(items)),
	}
	log := r.logger.With(slog.String("run_id", s.RunID))
	log.Info("batch started", slog.Int("items", s.Total))
	r.publish(event.Event{Type: event.BatchStarted, RunID: s.RunID, Total: s.Total})

	for i, it := range items {
		if ctx.Err() != nil {
			s.Interrupted = true
			break
		}
		o := r.process(ctx, log, event.Event{RunID: s.RunID, Index: i + 1, Total: s.Total, Item: it.DisplayText()}, it)
		if o.Status == StatusPending {
			s.Outcomes = append(s.Outcomes, o)
			s.Interrupted = true
			break
		}
		if o.Status == StatusCompleted {
			q.Remove(it)
		}
		s.record(o)

		e := event.Event{
			Type:   event.ItemFinished,
			RunID:  s.RunID,
			Index:  i + 1,
			Total:  s.Total,
			Item:   it.DisplayText(),
			Status: string(o.Status),
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
		}
		r.publish(e)
	}

	s.Duration = r.now().Sub(start)
	log.Info("batch finished",
		slog.Int("completed", s.Completed),
		slog.Int("skipped", s.Skipped),
		slog.Int("timed_out", s.TimedOut),
		slog.Int("failed", s.Failed),
		slog.Bool("interrupted", s.Interrupted),
		slog.Duration("duration", s.Duration),
	)
	r.publish(event.Event{Type: event.BatchFinished, RunID: s.RunID, Total: s.Total})
	return s
}

// process takes one item through lookup, persistence and notification. pos
// carries the item's place in the run for progress events.
func (r *Runner) process(ctx context.Context, log *slog.Logger, pos event.Event, it *queue.Item) Outcome {
	o := Outcome{Item: it, Status: StatusPending}
	log = log.With(slog.String("item_id", it.ID.String()), slog.String("file", it.Name()))

	if it.Digest == "" {
		o.Status = StatusSkipped
		o.Err = lookup.ErrEmptyDigest
		log.Warn("skipping item without a hash")
		return o
	}

	o.Status = StatusSubmitted
	pos.Type = event.ItemSubmitted
	r.publish(pos)

	itemCtx, cancel := context.WithTimeout(ctx, r.timeout)
	rep, err := r.lookup.FetchReport(itemCtx, it.Digest)
	cancel()

	switch {
	case err == nil:
	case ctx.Err() != nil:
		o.Status = StatusPending
		o.Err = err
		log.Warn("lookup interrupted", slog.String("error", err.Error()))
		return o
	case errors.Is(err, context.DeadlineExceeded):
		o.Status = StatusTimedOut
		o.Err = err
		log.Warn("lookup timed out", slog.Duration("timeout", r.timeout))
		return o
	case errors.Is(err, lookup.ErrEmptyDigest):
		o.Status = StatusSkipped
		o.Err = err
		return o
	default:
		o.Status = StatusFailed
		o.Err = err
		log.Error("lookup failed", slog.String("error", err.Error()))
		return o
	}

	o.Status = StatusCompleted
	o.Report = rep
	log.Info("lookup completed", slog.Bool("not_found", rep.NotFound))

	paths, err := r.store.Save(it.Name(), rep.Payload)
	if err != nil {
		o.PersistErr = err
		log.Error("saving report", slog.String("error", err.Error()))
		return o
	}
	o.Paths = paths

	if r.notifier != nil {
		msg := notify.ScanReport(notify.Scan{
			Name:      it.Name(),
			Digest:    it.Digest,
			ScannedAt: r.now(),
			NotFound:  rep.NotFound,
			Payload:   rep.Payload,
		})
		nctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.notifier.Notify(nctx, msg); err != nil {
			o.NotifyErr = err
			log.Warn("sending notification", slog.String("error", err.Error()))
		}
	}
	return o
}

func (r *Runner) publish(e event.Event) {
	if r.publisher == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	r.publisher.Publish(e)
}
