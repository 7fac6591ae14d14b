package event

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/HerbHall/capa/pkg/plugin"
	"go.uber.org/zap/zaptest"
)

func TestBus_PublishToTopicAndWildcard(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var topic, all, other int
	bus.Subscribe("capa.detection.completed", func(context.Context, plugin.Event) { topic++ })
	bus.Subscribe("something.else", func(context.Context, plugin.Event) { other++ })
	bus.SubscribeAll(func(context.Context, plugin.Event) { all++ })

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "capa.detection.completed"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if topic != 1 || all != 1 || other != 0 {
		t.Errorf("deliveries topic=%d all=%d other=%d, want 1, 1, 0", topic, all, other)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var first, second int
	unsub := bus.Subscribe("t", func(context.Context, plugin.Event) { first++ })
	bus.Subscribe("t", func(context.Context, plugin.Event) { second++ })
	unsubAll := bus.SubscribeAll(func(context.Context, plugin.Event) { first++ })

	unsub()
	unsubAll()
	_ = bus.Publish(context.Background(), plugin.Event{Topic: "t"})

	if first != 0 || second != 1 {
		t.Errorf("deliveries first=%d second=%d, want 0, 1", first, second)
	}
}

func TestBus_PublishAsyncWait(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var n atomic.Int32
	for range 5 {
		bus.Subscribe("t", func(context.Context, plugin.Event) { n.Add(1) })
	}

	bus.PublishAsync(context.Background(), plugin.Event{Topic: "t"})
	bus.Wait()

	if got := n.Load(); got != 5 {
		t.Errorf("async deliveries = %d, want 5", got)
	}
}

func TestBus_PanickingHandlerIsContained(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	delivered := false
	bus.Subscribe("t", func(context.Context, plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(context.Context, plugin.Event) { delivered = true })

	if err := bus.Publish(context.Background(), plugin.Event{Topic: "t"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !delivered {
		t.Error("handler after panicking handler was not called")
	}
}
