package chat

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleOperator Role = "operator"
)

// Message — canonical shape at the store boundary. Wire payloads that say
// "text" are normalized to Content before they get here.
type Message struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	AdminID        *int64     `json:"admin_id,omitempty"`
	Content        string     `json:"content"`
	IsAdmin        bool       `json:"is_admin"`
	IsAutoResponse bool       `json:"is_auto_response"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Snapshot — operator dashboard view, always recomputed from the store.
type Snapshot struct {
	ActiveUsers  []string       `json:"activeUsers"`
	UnreadCounts map[string]int `json:"unreadCounts"`
}

var (
	ErrEmptyContent = errors.New("chat: empty message content")
	ErrMissingID    = errors.New("chat: missing user or admin id")
)

// Repo — persistence. Append assigns id and created_at; ids are strictly
// increasing in insertion order.
type Repo interface {
	Append(ctx context.Context, msg *Message) (Message, error)
	History(ctx context.Context, userID string) ([]Message, error)
	MarkRead(ctx context.Context, userID string, reader Role) (int64, error)
	ActiveUsers(ctx context.Context) ([]string, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	CountMessages(ctx context.Context, userID string) (int, error)
	CountRealMessages(ctx context.Context, userID string) (int, error)
}

// Broadcaster — fanout seam. One global topic: every open connection of
// either role receives every broadcast.
type Broadcaster interface {
	BroadcastMessage(msg Message)
	BroadcastUnreadCount(userID string, count int)
	BroadcastReadState(userID string, messages []Message)
	BroadcastTyping(userID string)
}

// Service — the sync engine. All operations touching one conversation's
// persisted state are serialized per user id.
type Service interface {
	VisitorConnect(ctx context.Context, userID string) ([]Message, error)
	History(ctx context.Context, userID string) ([]Message, error)
	VisitorMessage(ctx context.Context, userID, text string) error
	OperatorMessage(ctx context.Context, adminID int64, userID, text string) error
	MarkRead(ctx context.Context, userID string, reader Role) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Histories(ctx context.Context) (map[string][]Message, error)
	Close()
}
