package ws

import (
	"context"
	"testing"
	"time"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
)

func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	return hub
}

func bareClient(hub *Hub, buffer int) *Client {
	return &Client{
		role: chat.RoleVisitor,
		hub:  hub,
		send: make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

func register(hub *Hub, c *Client) {
	hub.Register <- c
	time.Sleep(20 * time.Millisecond)
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.clients == nil || hub.broadcast == nil || hub.Register == nil || hub.Unregister == nil || hub.done == nil {
		t.Fatal("hub not fully initialized")
	}
	if hub.ClientCount() != 0 {
		t.Fatalf("expected empty hub, got %d clients", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := setupHub(t)

	c := bareClient(hub, 16)
	register(hub, c)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	c.close()
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	select {
	case <-c.done:
	default:
		t.Fatal("client should be terminal after close")
	}
}

func TestBroadcastReachesAllRoles(t *testing.T) {
	hub := setupHub(t)

	visitor := bareClient(hub, 16)
	operator := bareClient(hub, 16)
	operator.role = chat.RoleOperator
	register(hub, visitor)
	register(hub, operator)

	hub.BroadcastMessage(chat.Message{ID: 1, UserID: "v1", Content: "hello"})
	time.Sleep(20 * time.Millisecond)

	for name, c := range map[string]*Client{"visitor": visitor, "operator": operator} {
		select {
		case ev := <-c.send:
			if ev.Type != EventMessage {
				t.Errorf("%s got event %q, want %q", name, ev.Type, EventMessage)
			}
		default:
			t.Errorf("%s received nothing", name)
		}
	}
}

func TestBroadcastToNobodyIsNoop(t *testing.T) {
	hub := setupHub(t)
	hub.BroadcastUnreadCount("v1", 3)
	hub.BroadcastTyping("v1")
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Fatal("no clients expected")
	}
}

func TestSlowConsumerIsDropped(t *testing.T) {
	hub := setupHub(t)

	healthy := bareClient(hub, 16)
	slow := bareClient(hub, 0)
	register(hub, healthy)
	register(hub, slow)

	hub.BroadcastMessage(chat.Message{ID: 1, UserID: "v1", Content: "hi"})
	time.Sleep(20 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Fatalf("slow consumer should be evicted, %d clients left", hub.ClientCount())
	}
	select {
	case ev := <-healthy.send:
		if ev.Type != EventMessage {
			t.Fatalf("healthy client got %q", ev.Type)
		}
	default:
		t.Fatal("healthy client received nothing")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	c := bareClient(hub, 16)
	register(hub, c)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	if hub.ClientCount() != 0 {
		t.Fatal("clients must be closed on shutdown")
	}
	select {
	case <-c.done:
	default:
		t.Fatal("client should be shut down when the hub stops")
	}
}

func TestSendAfterEvictionDoesNotPanic(t *testing.T) {
	hub := setupHub(t)

	slow := bareClient(hub, 0)
	register(hub, slow)

	hub.BroadcastMessage(chat.Message{ID: 1, UserID: "v1", Content: "hi"})
	time.Sleep(20 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Fatalf("slow consumer should be evicted, %d clients left", hub.ClientCount())
	}

	// The read pump may still be mid-dispatch when the hub evicts; a late
	// reply must be dropped, not crash the process.
	slow.Send(Event{Type: EventMessageHistory, Data: []chat.Message{}})
	slow.Send(Event{Type: EventMessage, Data: chat.Message{ID: 2}})

	select {
	case ev := <-slow.send:
		t.Fatalf("evicted client should not be queued events, got %q", ev.Type)
	default:
	}
}

func TestCloseAfterHubShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	c := bareClient(hub, 16)
	finished := make(chan struct{})
	go func() {
		c.close()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("close blocked after hub shutdown")
	}
}

func TestBroadcastBlocksUntilDrained(t *testing.T) {
	hub := NewHub()

	for i := 0; i < broadcastBuffer; i++ {
		hub.BroadcastTyping("v1")
	}

	blocked := make(chan struct{})
	go func() {
		hub.BroadcastTyping("v1")
		close(blocked)
	}()
	select {
	case <-blocked:
		t.Fatal("broadcast should block while nothing drains the hub")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("broadcast did not unblock once the hub drained")
	}
}

func TestBroadcastEventShapes(t *testing.T) {
	hub := setupHub(t)
	c := bareClient(hub, 16)
	register(hub, c)

	hub.BroadcastUnreadCount("v1", 2)
	hub.BroadcastReadState("v1", []chat.Message{{ID: 1, UserID: "v1", Content: "x"}})
	hub.BroadcastTyping("v1")
	time.Sleep(20 * time.Millisecond)

	want := []string{EventUnreadCountUpdated, EventMessagesUpdated, EventAdminTyping}
	for _, wantType := range want {
		select {
		case ev := <-c.send:
			if ev.Type != wantType {
				t.Errorf("got event %q, want %q", ev.Type, wantType)
			}
		default:
			t.Fatalf("missing event %q", wantType)
		}
	}
}
