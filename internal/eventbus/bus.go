// Package eventbus fans domain events out to subscribers on a small worker
// pool. Publishing never blocks the caller.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType names a kind of domain event.
type EventType string

const (
	EventTypeScanCompleted    EventType = "scan_completed"
	EventTypeScanFailed       EventType = "scan_failed"
	EventTypeGroupChanged     EventType = "group_changed"
	EventTypeControlCompleted EventType = "control_completed"
	EventTypeControlFailed    EventType = "control_failed"
)

const (
	DefaultWorkerCount = 2
	DefaultQueueSize   = 100
)

// Event is a single occurrence published on the bus.
type Event struct {
	ID   string
	Type EventType
	Time time.Time
	Data map[string]any
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, data map[string]any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}
}

// Handler consumes events.
type Handler func(Event)

// Stats counts deliveries since the bus was created.
type Stats struct {
	Queued  uint64 `json:"queued"`
	Dropped uint64 `json:"dropped"`
	Panics  uint64 `json:"panics"`
}

type delivery struct {
	event   Event
	handler Handler
}

// Bus routes events to handlers subscribed by type or to every event.
type Bus struct {
	mu     sync.RWMutex
	byType map[EventType][]Handler
	all    []Handler

	queue chan delivery
	wg    sync.WaitGroup

	// sendMu is held shared by publishers and exclusively while closing,
	// so the queue is never closed under a sender.
	sendMu    sync.RWMutex
	closed    bool
	closeOnce sync.Once

	queued  atomic.Uint64
	dropped atomic.Uint64
	panics  atomic.Uint64
}

// New creates a bus with default settings.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with the given worker count and queue size.
// Non-positive values fall back to the defaults.
func NewWithConfig(workers, queueSize int) *Bus {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		byType: make(map[EventType][]Handler),
		queue:  make(chan delivery, queueSize),
	}
	b.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go b.worker(i)
	}

	log.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	for d := range b.queue {
		b.dispatch(id, d)
	}
}

func (b *Bus) dispatch(worker int, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			log.Error().
				Interface("panic", r).
				Str("event_type", string(d.event.Type)).
				Int("worker", worker).
				Msg("Event handler panicked")
		}
	}()
	d.handler(d.event)
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], handler)
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

func (b *Bus) handlersFor(t EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	hs := make([]Handler, 0, len(b.byType[t])+len(b.all))
	hs = append(hs, b.byType[t]...)
	return append(hs, b.all...)
}

// Publish queues the event for every matching handler and reports how many
// deliveries were queued. Deliveries that do not fit in the queue, or that
// arrive after Close, are dropped and logged.
func (b *Bus) Publish(event Event) int {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	handlers := b.handlersFor(event.Type)

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	if b.closed {
		b.dropped.Add(uint64(len(handlers)))
		log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return 0
	}

	queued := 0
	for _, h := range handlers {
		select {
		case b.queue <- delivery{event: event, handler: h}:
			queued++
		default:
			b.dropped.Add(1)
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus queue full, dropping event")
		}
	}
	b.queued.Add(uint64(queued))
	return queued
}

// Stats returns the delivery counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Queued:  b.queued.Load(),
		Dropped: b.dropped.Load(),
		Panics:  b.panics.Load(),
	}
}

// Close stops accepting events and waits for queued deliveries to finish
// or for ctx to expire. It is safe to call more than once.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		b.sendMu.Lock()
		b.closed = true
		close(b.queue)
		b.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus drained")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

// Clear removes all handlers.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType = make(map[EventType][]Handler)
	b.all = nil
}
