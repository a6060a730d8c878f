package event

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()

	var mu sync.Mutex
	var received []Event
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	}, ItemFinished)

	bus.Publish(Event{Type: ItemFinished, Index: 2, Total: 3, Status: "completed"})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("got %d events, want 1", len(received))
	}
	if received[0].Index != 2 || received[0].Total != 3 {
		t.Errorf("index/total = %d/%d, want 2/3", received[0].Index, received[0].Total)
	}
	if received[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestSubscribeMultipleTypes(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()

	var mu sync.Mutex
	var types []Type
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}, BatchStarted, BatchFinished)

	bus.Publish(Event{Type: BatchStarted})
	bus.Publish(Event{Type: ItemSubmitted})
	bus.Publish(Event{Type: BatchFinished})
	bus.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 2 || types[0] != BatchStarted || types[1] != BatchFinished {
		t.Errorf("got %v, want [batch.started batch.finished]", types)
	}
}

func TestStopDrainsBuffer(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	count := 0
	bus.Subscribe(func(Event) { count++ }, ItemFinished)
	for range 5 {
		bus.Publish(Event{Type: ItemFinished})
	}

	go bus.Start()
	bus.Stop()
	bus.Stop() // second Stop is a no-op

	if count != 5 {
		t.Errorf("handled %d events, want 5", count)
	}
}

func TestBufferFull(t *testing.T) {
	bus := NewBus(testLogger(), 2)
	// Not started: events accumulate in the channel.
	bus.Publish(Event{Type: ItemFinished})
	bus.Publish(Event{Type: ItemFinished})
	bus.Publish(Event{Type: ItemFinished})
	if got := len(bus.ch); got != 2 {
		t.Errorf("buffered %d events, want 2", got)
	}
}

func TestHandlerPanicRecovery(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()

	secondCalled := make(chan struct{})
	bus.Subscribe(func(Event) { panic("test panic") }, BatchFinished)
	bus.Subscribe(func(Event) { close(secondCalled) }, BatchFinished)

	bus.Publish(Event{Type: BatchFinished})

	select {
	case <-secondCalled:
	case <-time.After(time.Second):
		t.Fatal("second handler should still be called after first panics")
	}
	bus.Stop()
}
