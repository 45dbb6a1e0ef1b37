// Package events provides a non-blocking pub/sub bus for queue and
// escalation lifecycle events.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// EventItemEnqueued is published when a new item enters the queue.
	EventItemEnqueued EventType = "item_enqueued"
	// EventItemCompleted is published when an item reaches completed.
	EventItemCompleted EventType = "item_completed"
	// EventItemFailed is published when an item reaches failed.
	EventItemFailed EventType = "item_failed"
	// EventLevelStarted is published before a level handler is invoked.
	EventLevelStarted EventType = "level_started"
	// EventLevelAdvanced is published when a task moves up the ladder.
	EventLevelAdvanced EventType = "level_advanced"
	// EventTaskResolved is published when a task reaches resolved.
	EventTaskResolved EventType = "task_resolved"
	// EventTaskExhausted is published when a task reaches exhausted.
	EventTaskExhausted EventType = "task_exhausted"
	// EventBudgetWarning is published when the daily budget nears exhaustion.
	EventBudgetWarning EventType = "budget_warning"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
}

// Subscriber receives events.
type Subscriber func(Event)

// Bus delivers events asynchronously over buffered channels. If a
// subscriber's channel is full the event is dropped rather than blocking
// the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. Delivery happens on a dedicated goroutine; panics in fn are
// swallowed so they cannot take down the bus.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish sends an event to all subscribers of the given type without
// blocking.
func (b *Bus) Publish(eventType EventType, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			// channel full, drop
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
