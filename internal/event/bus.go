// Package event provides the in-memory plugin.EventBus used by the server.
package event

import (
	"context"
	"slices"
	"sync"

	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap"
)

var _ plugin.EventBus = (*Bus)(nil)

// Bus delivers events to topic and wildcard subscribers. Publish runs
// handlers in the caller's goroutine; PublishAsync runs each handler in its
// own goroutine and Wait blocks until those have returned. A panicking
// handler is logged and does not affect the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	all      []entry
	nextID   uint64
	inflight sync.WaitGroup
	logger   *zap.Logger
}

type entry struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]entry),
		logger:   logger,
	}
}

// Publish dispatches event synchronously.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, e := range b.snapshot(event.Topic) {
		b.call(ctx, e.handler, event)
	}
	return nil
}

// PublishAsync dispatches event without waiting for handlers.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	for _, e := range b.snapshot(event.Topic) {
		b.inflight.Add(1)
		go func(h plugin.EventHandler) {
			defer b.inflight.Done()
			b.call(ctx, h, event)
		}(e.handler)
	}
}

// Wait blocks until every handler started by PublishAsync has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// Subscribe registers handler for topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.register()
	b.handlers[topic] = append(b.handlers[topic], entry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = remove(b.handlers[topic], id)
		if len(b.handlers[topic]) == 0 {
			delete(b.handlers, topic)
		}
	}
}

// SubscribeAll registers handler for every topic.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.register()
	b.all = append(b.all, entry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = remove(b.all, id)
	}
}

// register returns a fresh subscription id. Callers hold mu.
func (b *Bus) register() uint64 {
	id := b.nextID
	b.nextID++
	return id
}

func (b *Bus) snapshot(topic string) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]entry, 0, len(b.handlers[topic])+len(b.all))
	out = append(out, b.handlers[topic]...)
	return append(out, b.all...)
}

func remove(entries []entry, id uint64) []entry {
	return slices.DeleteFunc(slices.Clone(entries), func(e entry) bool { return e.id == id })
}

func (b *Bus) call(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
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
