package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id               BIGSERIAL PRIMARY KEY,
	user_id          TEXT        NOT NULL,
	admin_id         BIGINT,
	content          TEXT        NOT NULL,
	is_admin         BOOLEAN     NOT NULL DEFAULT FALSE,
	is_auto_response BOOLEAN     NOT NULL DEFAULT FALSE,
	read_at          TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages (user_id, id);
`

// EnsureSchema is safe to call on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("chat schema: %w", err)
		}
	}
	return nil
}

func (r *repo) Append(ctx context.Context, msg *Message) (Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return Message{}, ErrEmptyContent
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (user_id, admin_id, content, is_admin, is_auto_response)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, admin_id, content, is_admin, is_auto_response, read_at, created_at
	`,
		msg.UserID,
		msg.AdminID,
		msg.Content,
		msg.IsAdmin,
		msg.IsAutoResponse,
	)

	var out Message
	if err := scanMessage(row, &out); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return out, nil
}

func (r *repo) History(ctx context.Context, userID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, admin_id, content, is_admin, is_auto_response, read_at, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead touches only the opposing role's unread rows, so a second
// identical call updates zero rows.
func (r *repo) MarkRead(ctx context.Context, userID string, reader Role) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = now()
		WHERE user_id = $1 AND is_admin = $2 AND read_at IS NULL
	`, userID, reader == RoleVisitor)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

func (r *repo) ActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id
		FROM messages
		GROUP BY user_id
		ORDER BY MAX(id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("active users scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE user_id = $1 AND is_admin = FALSE AND read_at IS NULL
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (r *repo) CountMessages(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE user_id = $1
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (r *repo) CountRealMessages(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE user_id = $1 AND NOT is_auto_response
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count real messages: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, m *Message) error {
	return s.Scan(
		&m.ID,
		&m.UserID,
		&m.AdminID,
		&m.Content,
		&m.IsAdmin,
		&m.IsAutoResponse,
		&m.ReadAt,
		&m.CreatedAt,
	)
}
