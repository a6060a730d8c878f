// Package event carries batch progress from the runner to any number of
// presentation-side subscribers.
package event

import (
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	BatchStarted  Type = "batch.started"
	ItemSubmitted Type = "item.submitted"
	ItemFinished  Type = "item.finished"
	BatchFinished Type = "batch.finished"
	FileQueued    Type = "file.queued"
)

// Event is one progress notification. Index is 1-based within the batch;
// Status and Error are only set on ItemFinished.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Index     int       `json:"index,omitempty"`
	Total     int       `json:"total"`
	Item      string    `json:"item,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Handler processes an event.
type Handler func(Event)

// Publisher accepts events.
type Publisher interface {
	Publish(e Event)
}

// Bus is an in-process event bus backed by a buffered channel.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *slog.Logger
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// NewBus creates a bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Subscribe registers h for each of the given types.
func (b *Bus) Subscribe(h Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		b.subs[t] = append(b.subs[t], h)
	}
}

// Publish queues an event without blocking; it is dropped with a warning
// when the buffer is full.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", "type", string(e.Type))
	}
}

// Start dispatches events until Stop is called. Run it in a goroutine.
func (b *Bus) Start() {
	defer close(b.exited)
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.done:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// Stop makes Start drain the buffer and return, and waits for it to do so.
// It must only be called after Start has been launched.
func (b *Bus) Stop() {
	b.once.Do(func() { close(b.done) })
	<-b.exited
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			h(e)
		}()
	}
}
