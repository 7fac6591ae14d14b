package ws

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(id string, buffer int) *Client {
	return &Client{
		id:     id,
		send:   make(chan Message, buffer),
		logger: zap.NewNop(),
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := newTestClient("a", 1), newTestClient("b", 1)

	hub.Register(a)
	hub.Register(b)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	hub.Unregister(a)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() after Unregister = %d, want 1", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("send channel of unregistered client is still open")
	}

	// A second Unregister must not close the channel again.
	hub.Unregister(a)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	clients := []*Client{newTestClient("a", 4), newTestClient("b", 4)}
	for _, c := range clients {
		hub.Register(c)
	}

	msg := Message{Type: MessageDetectionCompleted, RunID: "run-1", Timestamp: time.Now()}
	hub.Broadcast(msg)

	for _, c := range clients {
		select {
		case got := <-c.send:
			if got.Type != msg.Type || got.RunID != msg.RunID {
				t.Errorf("client %s received %+v, want %+v", c.id, got, msg)
			}
		default:
			t.Errorf("client %s received nothing", c.id)
		}
	}
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newTestClient("slow", 2)
	hub.Register(c)

	for i := range 5 {
		hub.Broadcast(Message{Type: MessageDetectionCompleted, RunID: fmt.Sprint(i)})
	}

	if got := len(c.send); got != 2 {
		t.Fatalf("queued = %d, want 2", got)
	}
	if first := <-c.send; first.RunID != "0" {
		t.Errorf("first queued message = %q, want the oldest", first.RunID)
	}
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := newTestClient("a", 1)
	hub.Register(a)

	hub.CloseAll()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after CloseAll = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-a.send; ok {
		t.Error("send channel still open after CloseAll")
	}
	hub.Unregister(a)
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newTestClient(fmt.Sprint(i), 8)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(Message{Type: MessageDetectionCompleted})
			_ = hub.ClientCount()
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}
