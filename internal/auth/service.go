package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// wsTokenTTL keeps the websocket handoff token short-lived: it is minted
// right before the upgrade request and useless afterwards.
const wsTokenTTL = time.Minute

type service struct {
	repo       Repo
	secret     []byte
	bcryptCost int
	sessionTTL time.Duration
}

func NewService(repo Repo, secret string, bcryptCost int, sessionTTL time.Duration) Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = 12
	}
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &service{
		repo:       repo,
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		sessionTTL: sessionTTL,
	}
}

func (s *service) Signup(ctx context.Context, username, password string) (Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Admin{}, ErrBadCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateAdmin(ctx, username, string(hash))
}

// Login returns ErrNotFound for an unknown username and ErrBadCredentials
// for a wrong password; the handler surfaces them differently.
func (s *service) Login(ctx context.Context, username, password string) (Admin, Session, error) {
	admin, err := s.repo.AdminByUsername(ctx, username)
	if err != nil {
		return Admin{}, Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return Admin{}, Session{}, ErrBadCredentials
	}

	sess := Session{
		SID:       uuid.NewString(),
		AdminID:   admin.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return Admin{}, Session{}, err
	}
	return admin, sess, nil
}

func (s *service) Logout(ctx context.Context, sid string) error {
	return s.repo.DeleteSession(ctx, sid)
}

func (s *service) AdminBySession(ctx context.Context, sid string) (Admin, error) {
	if sid == "" {
		return Admin{}, ErrNotAuthenticated
	}
	return s.repo.SessionAdmin(ctx, sid)
}

func (s *service) MintWSToken(admin Admin) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id": admin.ID,
		"iat":      now.Unix(),
		"exp":      now.Add(wsTokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *service) VerifyWSToken(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrNotAuthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrNotAuthenticated
	}
	id, ok := claims["admin_id"].(float64)
	if !ok || id <= 0 {
		return 0, ErrNotAuthenticated
	}
	return int64(id), nil
}
