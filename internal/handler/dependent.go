package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pingvi/pingvi/internal/auth"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/model"
	"github.com/pingvi/pingvi/internal/notify"
	"github.com/pingvi/pingvi/internal/store"
	"github.com/pingvi/pingvi/internal/websocket"
)

type DependentHandler struct {
	accounts   *store.AccountStore
	hub        *websocket.Hub
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewDependentHandler(accounts *store.AccountStore, hub *websocket.Hub, dispatcher *notify.Dispatcher, logger *slog.Logger) *DependentHandler {
	return &DependentHandler{
		accounts:   accounts,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logging.Component(logger, "dependent"),
	}
}

func (h *DependentHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type dependentRequest struct {
	Name string `json:"name"`
	Age  *int   `json:"age"`
}

// Create adds a child account under the calling guardian. The generated
// password appears in the response and the credential event, and nowhere
// else, ever.
func (h *DependentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsGuardian(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "guardian role required", "code": "forbidden"})
		return
	}

	var req dependentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required", "code": "invalid_input"})
		return
	}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "age out of range", "code": "invalid_input"})
		return
	}

	dep, err := h.accounts.CreateDependent(auth.AccountID(r.Context()), req.Name, req.Age)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.dispatcher.EnqueueCredentialIssued(notify.CredentialIssued{
		AccountID:   dep.Account.ID,
		DisplayName: dep.Account.DisplayName,
		Login:       dep.Account.Login,
		Password:    dep.Password,
		Role:        string(dep.Account.Role),
		IssuedAt:    time.Now().UTC(),
	})
	h.broadcast(websocket.NewMessage("dependent", "created", dep.Account.ID, nil))

	writeJSON(w, http.StatusCreated, map[string]any{
		"account":  dep.Account,
		"password": dep.Password,
	})
}

// List returns the calling guardian's active children.
func (h *DependentHandler) List(w http.ResponseWriter, r *http.Request) {
	if !auth.IsGuardian(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "guardian role required", "code": "forbidden"})
		return
	}

	dependents, err := h.accounts.ListDependents(auth.AccountID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if dependents == nil {
		dependents = []model.Account{}
	}
	writeJSON(w, http.StatusOK, dependents)
}

// Get returns one child account, guardians only, own children only.
func (h *DependentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !auth.IsGuardian(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "guardian role required", "code": "forbidden"})
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id", "code": "invalid_input"})
		return
	}

	child, err := h.accounts.GetDependent(auth.AccountID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if child == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dependent not found", "code": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// Deactivate soft-deletes a child account and revokes its sessions. The
// child's ledger history survives.
func (h *DependentHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if !auth.IsGuardian(r.Context()) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "guardian role required", "code": "forbidden"})
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id", "code": "invalid_input"})
		return
	}

	child, err := h.accounts.GetDependent(auth.AccountID(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if child == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dependent not found", "code": "not_found"})
		return
	}

	if err := h.accounts.Deactivate(child.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("dependent", "deleted", child.ID, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
