// Package event provides the in-memory bus that carries monitor results and
// registration changes from the engine to observers such as the WebSocket hub.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics published by the heartbeat engine and its API.
const (
	TopicResult     = "heartbeat.result"
	TopicRegistered = "heartbeat.monitor.registered"
	TopicRemoved    = "heartbeat.monitor.removed"
)

// Event is a typed message on the bus.
type Event struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Handler processes events from the bus.
type Handler func(ctx context.Context, event Event)

// Publisher is the side of the bus producers depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	PublishAsync(ctx context.Context, event Event)
}

// Compile-time interface guard.
var _ Publisher = (*Bus)(nil)

// Bus dispatches events to subscribers. Publish runs handlers in the
// caller's goroutine; PublishAsync gives each handler its own goroutine.
// A panicking handler is logged and does not affect other handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
	allSubs  []subscription
	nextID   uint64
	logger   *zap.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// Publish delivers event to every matching handler before returning.
// A zero Timestamp is set to the current time.
func (b *Bus) Publish(ctx context.Context, event Event) {
	event = stamp(event)
	for _, s := range b.matching(event.Topic) {
		b.safeCall(ctx, s.handler, event)
	}
}

// PublishAsync delivers event to every matching handler in new goroutines.
func (b *Bus) PublishAsync(ctx context.Context, event Event) {
	event = stamp(event)
	for _, s := range b.matching(event.Topic) {
		go b.safeCall(ctx, s.handler, event)
	}
}

// Subscribe registers handler for topic and returns its unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = without(b.handlers[topic], id)
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.allSubs = without(b.allSubs, id)
		b.mu.Unlock()
	}
}

// matching copies the handlers for topic so they run without the lock held.
func (b *Bus) matching(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]subscription, 0, len(b.handlers[topic])+len(b.allSubs))
	out = append(out, b.handlers[topic]...)
	return append(out, b.allSubs...)
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func stamp(event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// MonitorChange is the payload of TopicRegistered and TopicRemoved.
type MonitorChange struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	CheckType string `json:"type,omitempty"`
}
