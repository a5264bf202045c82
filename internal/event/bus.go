// Package event provides an in-process publish/subscribe bus used to hand
// search and launch outcomes to interested collaborators.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics published by the tool dispatcher.
const (
	TopicSearchRecorded  = "search.recorded"
	TopicContentLaunched = "content.launched"
)

// Event is a single message on the bus.
type Event struct {
	Topic     string
	Source    string
	Timestamp time.Time
	Payload   any
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)

// Publisher is the publishing half of the bus.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	PublishAsync(ctx context.Context, e Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous in-memory event bus. Handlers run in subscription
// order; a panicking handler is logged and does not stop the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscription
	all    []subscription
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		topics: make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for topic and returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.topics[topic] = remove(b.topics[topic], id)
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// Publish delivers e to all matching handlers before returning.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	for _, h := range b.handlersFor(e.Topic) {
		b.invoke(ctx, h, e)
	}
	return nil
}

// PublishAsync delivers e on a new goroutine.
func (b *Bus) PublishAsync(ctx context.Context, e Event) {
	go func() {
		_ = b.Publish(context.WithoutCancel(ctx), e)
	}()
}

func (b *Bus) handlersFor(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.topics[topic]
	out := make([]Handler, 0, len(subs)+len(b.all))
	for _, s := range subs {
		out = append(out, s.handler)
	}
	for _, s := range b.all {
		out = append(out, s.handler)
	}
	return out
}

func (b *Bus) invoke(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", e.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, e)
}

func remove(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
