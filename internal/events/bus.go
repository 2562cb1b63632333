package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler is a callback invoked for each published event.
// Handlers run on the publisher's goroutine and must not block; subscribers
// that forward to channels should use non-blocking sends.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		log:      log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// Publish dispatches an event to all handlers subscribed to its type.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	// Invoke outside the lock so handlers may subscribe or unsubscribe
	for _, h := range handlers {
		h(event)
	}
}
