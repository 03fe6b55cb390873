package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/getreststore/api/internal/platform/auth"
	"github.com/getreststore/api/internal/platform/httpx"
)

const maxAuthBodySize = 4 * 1024

// AuthHandlers issues and clears the admin session cookie.
type AuthHandlers struct {
	sessions *auth.SessionManager
}

// NewAuthHandlers constructs handlers around the session manager.
func NewAuthHandlers(sessions *auth.SessionManager) *AuthHandlers {
	return &AuthHandlers{sessions: sessions}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAuthBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username and password are required", http.StatusBadRequest))
		return
	}

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "username and password are required", http.StatusBadRequest))
		return
	}

	if err := h.sessions.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "username or password is incorrect", http.StatusUnauthorized))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to authenticate", http.StatusInternalServerError))
		return
	}

	token, expires, err := h.sessions.Issue(req.Username)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to issue session", http.StatusInternalServerError))
		return
	}

	http.SetCookie(w, h.sessions.SessionCookie(token, expires))
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresAt": formatTime(expires),
	})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication is unavailable", http.StatusServiceUnavailable))
		return
	}

	http.SetCookie(w, h.sessions.ClearedSessionCookie())
	writeJSONResponse(w, http.StatusOK, map[string]any{"success": true})
}
