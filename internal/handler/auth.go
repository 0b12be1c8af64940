package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pingvi/pingvi/internal/auth"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/middleware"
)

type AuthHandler struct {
	sessions *auth.SessionManager
	logger   *slog.Logger
}

func NewAuthHandler(sessions *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, logger: logging.Component(logger, "auth")}
}

type loginRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	DeviceInfo string `json:"device_info"`
}

// Login exchanges credentials for a bearer token. Any prior session for the
// account is revoked by the exchange.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "login and password are required", "code": "invalid_input"})
		return
	}

	account, session, err := h.sessions.Authenticate(req.Login, req.Password, req.DeviceInfo)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"account":    account,
	})
}

// Refresh rotates the caller's token and pushes the expiry out by a full
// lifetime. The old token stops working immediately.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, code := middleware.BearerToken(r)
	if code != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing credentials", "code": code})
		return
	}

	session, err := h.sessions.Refresh(token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

// Logout revokes the caller's session. Revoking an already-revoked token
// succeeds, so double logouts are harmless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token", "code": middleware.CodeMissingToken})
		return
	}

	if err := h.sessions.Revoke(ac.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Validate resolves the caller's token to its account without side effects.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token", "code": middleware.CodeMissingToken})
		return
	}

	result, err := h.sessions.Validate(ac.Token)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":    result.Account,
		"expires_at": result.Session.ExpiresAt,
	})
}
