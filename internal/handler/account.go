package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pingvi/pingvi/internal/auth"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/notify"
	"github.com/pingvi/pingvi/internal/store"
	"github.com/pingvi/pingvi/internal/websocket"
)

type AccountHandler struct {
	accounts   *store.AccountStore
	hub        *websocket.Hub
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewAccountHandler(accounts *store.AccountStore, hub *websocket.Hub, dispatcher *notify.Dispatcher, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logging.Component(logger, "account"),
	}
}

func (h *AccountHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type registerRequest struct {
	ExternalID  int64  `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// Register creates a guardian account for an external chat identity, or
// returns the existing one. The generated password appears in the response
// (and in the credential event) only on first creation.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.ExternalID == 0 || req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "external_id and display_name are required", "code": "invalid_input"})
		return
	}

	reg, err := h.accounts.RegisterGuardian(req.ExternalID, req.DisplayName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := map[string]any{
		"account_id": reg.Account.ID,
		"login":      reg.Account.Login,
		"is_new":     reg.IsNew,
	}

	status := http.StatusOK
	if reg.IsNew {
		status = http.StatusCreated
		resp["password"] = reg.Password
		h.dispatcher.EnqueueCredentialIssued(notify.CredentialIssued{
			AccountID:   reg.Account.ID,
			DisplayName: reg.Account.DisplayName,
			Login:       reg.Account.Login,
			Password:    reg.Password,
			Role:        string(reg.Account.Role),
			IssuedAt:    time.Now().UTC(),
		})
		h.broadcast(websocket.NewMessage("account", "created", reg.Account.ID, nil))
	}

	writeJSON(w, status, resp)
}

// Me returns the caller's own account, balance included.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetByID(auth.AccountID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found", "code": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type profileRequest struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// UpdateMe patches the caller's mutable profile fields. Absent fields are
// left untouched.
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		if trimmed == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name cannot be empty", "code": "invalid_input"})
			return
		}
		req.DisplayName = &trimmed
	}

	account, err := h.accounts.UpdateProfile(auth.AccountID(r.Context()), req.DisplayName, req.PhotoURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found", "code": "not_found"})
		return
	}

	h.broadcast(websocket.NewMessage("account", "updated", account.ID, nil))
	writeJSON(w, http.StatusOK, account)
}
