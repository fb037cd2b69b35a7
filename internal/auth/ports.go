package auth

import (
	"context"
	"errors"
	"time"
)

type Admin struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	SID       string
	AdminID   int64
	ExpiresAt time.Time
}

var (
	ErrNotFound         = errors.New("auth: admin not found")
	ErrUsernameTaken    = errors.New("auth: username already exists")
	ErrBadCredentials   = errors.New("auth: incorrect password")
	ErrNotAuthenticated = errors.New("auth: not authenticated")
)

// Repo — admin accounts and server-side sessions.
type Repo interface {
	CreateAdmin(ctx context.Context, username, passwordHash string) (Admin, error)
	AdminByUsername(ctx context.Context, username string) (Admin, error)
	CreateSession(ctx context.Context, s Session) error
	SessionAdmin(ctx context.Context, sid string) (Admin, error)
	DeleteSession(ctx context.Context, sid string) error
}

// Service — login/session lifecycle plus the websocket handoff token.
type Service interface {
	Signup(ctx context.Context, username, password string) (Admin, error)
	Login(ctx context.Context, username, password string) (Admin, Session, error)
	Logout(ctx context.Context, sid string) error
	AdminBySession(ctx context.Context, sid string) (Admin, error)
	MintWSToken(admin Admin) (string, error)
	VerifyWSToken(token string) (int64, error)
}
