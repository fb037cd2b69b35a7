package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS admins (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT        NOT NULL UNIQUE,
	password   TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS admin_sessions (
	sid        UUID PRIMARY KEY,
	admin_id   BIGINT      NOT NULL REFERENCES admins (id) ON DELETE CASCADE,
	expires_at TIMESTAMPTZ NOT NULL
);
`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("auth schema: %w", err)
		}
	}
	return nil
}

func (r *repo) CreateAdmin(ctx context.Context, username, passwordHash string) (Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO admins (username, password)
		VALUES ($1, $2)
		RETURNING id, username, created_at
	`, username, passwordHash)

	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return Admin{}, ErrUsernameTaken
		}
		return Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

func (r *repo) AdminByUsername(ctx context.Context, username string) (Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password, created_at
		FROM admins
		WHERE username = $1
	`, username)

	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Admin{}, ErrNotFound
		}
		return Admin{}, fmt.Errorf("admin by username: %w", err)
	}
	return a, nil
}

func (r *repo) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (sid, admin_id, expires_at)
		VALUES ($1, $2, $3)
	`, s.SID, s.AdminID, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *repo) SessionAdmin(ctx context.Context, sid string) (Admin, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT a.id, a.username, a.created_at
		FROM admin_sessions s
		JOIN admins a ON a.id = s.admin_id
		WHERE s.sid = $1 AND s.expires_at > now()
	`, sid)

	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Admin{}, ErrNotAuthenticated
		}
		return Admin{}, fmt.Errorf("session admin: %w", err)
	}
	return a, nil
}

func (r *repo) DeleteSession(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE sid = $1`, sid)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
