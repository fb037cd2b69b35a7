package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
	"github.com/Vovarama1992/live-support-chat/internal/metrics"
)

const broadcastBuffer = 256

// Hub is the fanout core: one global topic, every open connection of either
// role is a subscriber. Scoping broadcasts per conversation later only means
// filtering the subscriber set here; the event contracts stay put.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes lifecycle and broadcast events until ctx is canceled.
// On shutdown every client is closed; reconnects build new Client objects.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAllClients()
			log.Info().Str("component", "ws-hub").Msg("hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Connections.WithLabelValues(string(client.role)).Inc()
			log.Info().Int("total_clients", total).Str("role", string(client.role)).Msg("websocket client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				metrics.Connections.WithLabelValues(string(client.role)).Dec()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Info().Int("total_clients", total).Str("role", string(client.role)).Msg("websocket client disconnected")

		case ev := <-h.broadcast:
			h.broadcastToClients(ev)
		}
	}
}

func (h *Hub) broadcastToClients(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for client := range h.clients {
		select {
		case client.send <- ev:
		default:
			// Slow consumer: drop the connection, the client refetches
			// history on reconnect instead of relying on a backlog.
			toRemove = append(toRemove, client)
		}
	}

	// The send channel stays open; shutdown only signals done, so a Send
	// racing with the eviction never hits a closed channel.
	for _, client := range toRemove {
		client.shutdown()
		delete(h.clients, client)
		metrics.Connections.WithLabelValues(string(client.role)).Dec()
		metrics.DroppedEvents.WithLabelValues("slow_consumer").Inc()
		log.Warn().Str("role", string(client.role)).Msg("dropping slow websocket client")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.shutdown()
		delete(h.clients, client)
		metrics.Connections.WithLabelValues(string(client.role)).Dec()
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enqueue hands an event to the Run loop. Callers run outside the loop,
// so blocking on a full buffer is safe; events are only dropped once the
// hub has stopped. Stored messages never vanish on a burst.
func (h *Hub) enqueue(ev Event) {
	select {
	case h.broadcast <- ev:
		metrics.Broadcasts.WithLabelValues(ev.Type).Inc()
	case <-h.done:
		metrics.DroppedEvents.WithLabelValues("hub_stopped").Inc()
		log.Debug().Str("event", ev.Type).Msg("hub stopped, dropping event")
	}
}

// chat.Broadcaster implementation. Broadcasting to zero connections is a
// no-op, not an error.

func (h *Hub) BroadcastMessage(msg chat.Message) {
	h.enqueue(Event{Type: EventMessage, Data: msg})
}

func (h *Hub) BroadcastUnreadCount(userID string, count int) {
	h.enqueue(Event{Type: EventUnreadCountUpdated, Data: unreadCountData{UserID: userID, Count: count}})
}

func (h *Hub) BroadcastReadState(userID string, messages []chat.Message) {
	h.enqueue(Event{Type: EventMessagesUpdated, Data: messagesUpdatedData{UserID: userID, Messages: messages}})
}

func (h *Hub) BroadcastTyping(userID string) {
	h.enqueue(Event{Type: EventAdminTyping, Data: userRefPayload{UserID: userID}})
}
