package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	mu       sync.Mutex
	admins   map[string]Admin
	sessions map[string]Session
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		admins:   map[string]Admin{},
		sessions: map[string]Session{},
		nextID:   1,
	}
}

func (r *fakeRepo) CreateAdmin(_ context.Context, username, passwordHash string) (Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[username]; ok {
		return Admin{}, ErrUsernameTaken
	}
	a := Admin{ID: r.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	r.nextID++
	r.admins[username] = a
	return a, nil
}

func (r *fakeRepo) AdminByUsername(_ context.Context, username string) (Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.admins[username]
	if !ok {
		return Admin{}, ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) CreateSession(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SID] = s
	return nil
}

func (r *fakeRepo) SessionAdmin(_ context.Context, sid string) (Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sid]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return Admin{}, ErrNotAuthenticated
	}
	for _, a := range r.admins {
		if a.ID == s.AdminID {
			return a, nil
		}
	}
	return Admin{}, ErrNotAuthenticated
}

func (r *fakeRepo) DeleteSession(_ context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	return nil
}

func newTestService(repo Repo) Service {
	return NewService(repo, "test-secret", bcrypt.MinCost, time.Hour)
}

func TestSignupHashesPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	admin, err := svc.Signup(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if admin.ID == 0 || admin.Username != "alice" {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	stored := repo.admins["alice"]
	if stored.PasswordHash == "s3cret" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "", "pw"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for empty username, got %v", err)
	}
	if _, err := svc.Signup(ctx, "bob", ""); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for empty password, got %v", err)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc := newTestService(newFakeRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "alice", "pw"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "alice", "pw2"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	t.Run("unknown user", func(t *testing.T) {
		if _, _, err := svc.Login(ctx, "nobody", "pw"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("expected ErrBadCredentials, got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		admin, sess, err := svc.Login(ctx, "alice", "s3cret")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if admin.Username != "alice" {
			t.Fatalf("unexpected admin: %+v", admin)
		}
		if _, err := uuid.Parse(sess.SID); err != nil {
			t.Fatalf("sid is not a uuid: %q", sess.SID)
		}
		if !sess.ExpiresAt.After(time.Now()) {
			t.Fatal("session already expired")
		}

		got, err := svc.AdminBySession(ctx, sess.SID)
		if err != nil {
			t.Fatalf("AdminBySession: %v", err)
		}
		if got.ID != admin.ID {
			t.Fatalf("session resolved to wrong admin: %+v", got)
		}
	})
}

func TestLogoutInvalidatesSession(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	_, sess, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(ctx, sess.SID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.AdminBySession(ctx, sess.SID); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated after logout, got %v", err)
	}
}

func TestWSTokenRoundTrip(t *testing.T) {
	svc := newTestService(newFakeRepo())

	token, err := svc.MintWSToken(Admin{ID: 42, Username: "alice"})
	if err != nil {
		t.Fatalf("MintWSToken: %v", err)
	}

	id, err := svc.VerifyWSToken(token)
	if err != nil {
		t.Fatalf("VerifyWSToken: %v", err)
	}
	if id != 42 {
		t.Fatalf("got admin id %d, want 42", id)
	}
}

func TestWSTokenRejection(t *testing.T) {
	svc := newTestService(newFakeRepo())

	t.Run("garbage", func(t *testing.T) {
		if _, err := svc.VerifyWSToken("not-a-token"); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(newFakeRepo(), "other-secret", bcrypt.MinCost, time.Hour)
		token, err := other.MintWSToken(Admin{ID: 7})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.VerifyWSToken(token); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"admin_id": float64(42),
			"exp":      time.Now().Add(-time.Minute).Unix(),
		})
		token, err := expired.SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := svc.VerifyWSToken(token); !errors.Is(err, ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
