package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
)

// TokenVerifier — the authenticated-operator provider seam. The hub trusts
// the admin id it returns without re-checking credentials.
type TokenVerifier interface {
	VerifyWSToken(token string) (int64, error)
}

type Handler struct {
	hub      *Hub
	svc      chat.Service
	tokens   TokenVerifier
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, svc chat.Service, tokens TokenVerifier, allowedOrigin string) *Handler {
	return &Handler{
		hub:    hub,
		svc:    svc,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

// ServeVisitor upgrades a visitor connection. The userId is visitor-generated
// and unauthenticated; it only scopes the conversation. A brand-new id gets
// its welcome message before the history reply.
func (h *Handler) ServeVisitor(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error response.
	}

	client := NewVisitorClient(h.hub, h.svc, conn, userID)
	select {
	case h.hub.Register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}

	history, err := h.svc.VisitorConnect(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("visitor connect")
		history = []chat.Message{}
	}
	client.Send(Event{Type: EventMessageHistory, Data: history})

	client.Start()
}

// ServeAdmin upgrades an operator connection. Browsers cannot set an
// Authorization header on the upgrade request, so the short-lived token
// minted by the auth module travels as a query parameter.
func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	adminID, err := h.tokens.VerifyWSToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewOperatorClient(h.hub, h.svc, conn, adminID)
	select {
	case h.hub.Register <- client:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}

	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Int64("admin_id", adminID).Msg("directory snapshot")
	} else {
		client.Send(Event{Type: EventActiveUsers, Data: snap.ActiveUsers})
		client.Send(Event{Type: EventUnreadCounts, Data: snap.UnreadCounts})
	}

	client.Start()
}
