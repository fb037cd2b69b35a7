package ws

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
	"github.com/Vovarama1992/live-support-chat/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Per-connection inbound rate limit. Events over the limit are
	// dropped, the connection stays up.
	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// Connection lifecycle. Closed is terminal: a reconnect builds a new Client
// bound to the same userID/adminID.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub.
// A visitor client is bound to a userID; an operator client to an adminID.
type Client struct {
	id      uint64
	role    chat.Role
	userID  string
	adminID int64

	hub     *Hub
	svc     chat.Service
	conn    *websocket.Conn
	send    chan Event
	done    chan struct{}
	limiter *rate.Limiter
	state   atomic.Int32
}

func newClient(hub *Hub, svc chat.Service, conn *websocket.Conn, role chat.Role) *Client {
	c := &Client{
		id:      clientIDCounter.Add(1),
		role:    role,
		hub:     hub,
		svc:     svc,
		conn:    conn,
		send:    make(chan Event, 256),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
	}
	c.state.Store(int32(stateConnecting))
	return c
}

func NewVisitorClient(hub *Hub, svc chat.Service, conn *websocket.Conn, userID string) *Client {
	c := newClient(hub, svc, conn, chat.RoleVisitor)
	c.userID = userID
	return c
}

func NewOperatorClient(hub *Hub, svc chat.Service, conn *websocket.Conn, adminID int64) *Client {
	c := newClient(hub, svc, conn, chat.RoleOperator)
	c.adminID = adminID
	return c
}

// Send queues an event for this connection only. Used for requester-only
// replies (history, directory snapshot); everything else goes through the
// hub broadcast. The send channel is never closed, so a Send racing with
// an eviction or shutdown just drops the event.
func (c *Client) Send(ev Event) {
	select {
	case <-c.done:
		metrics.DroppedEvents.WithLabelValues("closed_connection").Inc()
		return
	default:
	}
	select {
	case c.send <- ev:
	default:
		metrics.DroppedEvents.WithLabelValues("send_buffer_full").Inc()
	}
}

// Start completes the handshake and starts the pumps. A no-op if the hub
// already shut the client down between Register and here.
func (c *Client) Start() {
	if !c.state.CompareAndSwap(int32(stateConnecting), int32(stateOpen)) {
		return
	}
	go c.writePump()
	go c.readPump()
}

// shutdown flips the client into its terminal state, signals both pumps
// through done, and closes the underlying connection. Returns false if
// another path got there first.
func (c *Client) shutdown() bool {
	state := connState(c.state.Swap(int32(stateClosed)))
	if state == stateClosed {
		return false
	}
	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return true
}

// close is the pump-side exit: shut down, then hand the client back to the
// hub. The select keeps a disconnect that straggles past hub shutdown from
// blocking on an Unregister nobody reads anymore.
func (c *Client) close() {
	if !c.shutdown() {
		return
	}
	select {
	case c.hub.Unregister <- c:
	case <-c.hub.done:
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Error().Err(err).Msg("set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("role", string(c.role)).Msg("unexpected websocket close")
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.DroppedEvents.WithLabelValues("rate_limited").Inc()
			continue
		}

		var ev inboundEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			metrics.DroppedEvents.WithLabelValues("bad_envelope").Inc()
			log.Debug().Err(err).Msg("undecodable websocket event")
			continue
		}

		c.dispatch(ev)
	}
}

// dispatch routes one inbound event. Validation failures are dropped
// without a reply to the sender.
func (c *Client) dispatch(ev inboundEvent) {
	ctx := context.Background()

	var err error
	switch {
	case c.role == chat.RoleVisitor:
		err = c.dispatchVisitor(ctx, ev)
	default:
		err = c.dispatchOperator(ctx, ev)
	}

	if err != nil {
		if errors.Is(err, chat.ErrEmptyContent) || errors.Is(err, chat.ErrMissingID) {
			metrics.DroppedEvents.WithLabelValues("validation").Inc()
			log.Debug().Err(err).Str("event", ev.Type).Msg("invalid event dropped")
			return
		}
		// Persistence failure: already nothing was broadcast, nothing
		// is retried.
		log.Error().Err(err).Str("event", ev.Type).Msg("event processing failed")
	}
}

func (c *Client) dispatchVisitor(ctx context.Context, ev inboundEvent) error {
	switch ev.Type {
	case EventRequestHistory:
		history, err := c.svc.VisitorConnect(ctx, c.userID)
		if err != nil {
			return err
		}
		c.Send(Event{Type: EventMessageHistory, Data: history})
		return nil

	case EventUserMessage:
		var p userMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return chat.ErrEmptyContent
		}
		return c.svc.VisitorMessage(ctx, c.userID, p.Text)

	case EventMarkRead:
		return c.svc.MarkRead(ctx, c.userID, chat.RoleVisitor)

	default:
		metrics.DroppedEvents.WithLabelValues("unknown_event").Inc()
		return nil
	}
}

func (c *Client) dispatchOperator(ctx context.Context, ev inboundEvent) error {
	switch ev.Type {
	case EventAdminConnected:
		snap, err := c.svc.Snapshot(ctx)
		if err != nil {
			return err
		}
		c.Send(Event{Type: EventActiveUsers, Data: snap.ActiveUsers})
		c.Send(Event{Type: EventUnreadCounts, Data: snap.UnreadCounts})
		return nil

	case EventAdminMessage:
		var p adminMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return chat.ErrMissingID
		}
		// adminID comes from the authenticated connection, never from
		// the payload.
		return c.svc.OperatorMessage(ctx, c.adminID, p.UserID, p.Text)

	case EventMarkRead:
		var p markReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return chat.ErrMissingID
		}
		return c.svc.MarkRead(ctx, p.UserID, chat.RoleOperator)

	case EventAdminTyping:
		var p userRefPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.UserID == "" {
			return chat.ErrMissingID
		}
		// Best effort, no persistence; the client expires it after 3s.
		c.hub.BroadcastTyping(p.UserID)
		return nil

	case EventRequestHistory:
		var p userRefPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil || p.UserID == "" {
			return chat.ErrMissingID
		}
		history, err := c.svc.History(ctx, p.UserID)
		if err != nil {
			return err
		}
		c.Send(Event{Type: EventMessageHistory, Data: history})
		return nil

	default:
		metrics.DroppedEvents.WithLabelValues("unknown_event").Inc()
		return nil
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			b, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("event", ev.Type).Msg("marshal outbound event")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
