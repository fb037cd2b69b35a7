package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/live-support-chat/internal/chat"
)

const sessionCookie = "sid"

// Directory — what the admin dashboard needs from the chat engine.
// Satisfied by chat.Service.
type Directory interface {
	Snapshot(ctx context.Context) (chat.Snapshot, error)
	Histories(ctx context.Context) (map[string][]chat.Message, error)
}

type Handler struct {
	svc          Service
	dir          Directory
	secureCookie bool
}

func NewHandler(svc Service, dir Directory, secureCookie bool) *Handler {
	return &Handler{svc: svc, dir: dir, secureCookie: secureCookie}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Username and password are required"})
		return
	}

	admin, err := h.svc.Signup(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Username already exists"})
			return
		}
		log.Error().Err(err).Msg("admin signup")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error creating admin account"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Admin created successfully",
		"admin":   admin,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Username and password are required"})
		return
	}

	admin, sess, err := h.svc.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"message":         "User does not exist. Please sign up first.",
				"signup_required": true,
			})
		case errors.Is(err, ErrBadCredentials):
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Incorrect password"})
		default:
			log.Error().Err(err).Msg("admin login")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal server error"})
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.SID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	payload, err := h.dashboardPayload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("login dashboard payload")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error fetching message history"})
		return
	}
	payload["message"] = "Login successful"
	payload["user"] = admin
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	admin, err := h.sessionAdmin(r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": true, "user": admin})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessionAdmin(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Not authenticated"})
		return
	}

	payload, err := h.dashboardPayload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("dashboard payload")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error fetching dashboard data"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := h.svc.Logout(r.Context(), cookie.Value); err != nil {
			log.Error().Err(err).Msg("admin logout")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error logging out"})
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logout successful"})
}

// WSToken trades a valid session for the short-lived token the websocket
// handshake carries in its query string.
func (h *Handler) WSToken(w http.ResponseWriter, r *http.Request) {
	admin, err := h.sessionAdmin(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Not authenticated"})
		return
	}

	token, err := h.svc.MintWSToken(admin)
	if err != nil {
		log.Error().Err(err).Msg("mint ws token")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Error creating token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) sessionAdmin(r *http.Request) (Admin, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Admin{}, ErrNotAuthenticated
	}
	return h.svc.AdminBySession(r.Context(), cookie.Value)
}

func (h *Handler) dashboardPayload(ctx context.Context) (map[string]any, error) {
	snap, err := h.dir.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := h.dir.Histories(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"activeUsers":    snap.ActiveUsers,
		"unreadCounts":   snap.UnreadCounts,
		"messagesByUser": histories,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
