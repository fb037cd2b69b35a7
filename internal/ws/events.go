package ws

import (
	"github.com/goccy/go-json"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
)

// Inbound event types. Wire names are kept compatible with the existing
// browser clients.
const (
	EventRequestHistory = "requestUserHistory"
	EventUserMessage    = "userMessage"
	EventAdminMessage   = "adminMessage"
	EventMarkRead       = "markMessagesRead"
	EventAdminConnected = "adminConnected"
	EventAdminTyping    = "adminTyping"
)

// Outbound event types.
const (
	EventMessage            = "message"
	EventMessageHistory     = "messageHistory"
	EventActiveUsers        = "activeUsers"
	EventUnreadCounts       = "unreadCounts"
	EventUnreadCountUpdated = "unreadCountUpdated"
	EventMessagesUpdated    = "messagesUpdated"
)

// Event is the outbound envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundEvent defers payload decoding until the type is known.
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// userMessagePayload accepts the legacy "text" field; the canonical
// "content" field lives on stored messages only.
type userMessagePayload struct {
	Text string `json:"text"`
}

type adminMessagePayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type markReadPayload struct {
	UserID string `json:"userId"`
}

type userRefPayload struct {
	UserID string `json:"userId"`
}

type unreadCountData struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}

type messagesUpdatedData struct {
	UserID   string         `json:"userId"`
	Messages []chat.Message `json:"messages"`
}
