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

type TaskHandler struct {
	tasks      *store.TaskStore
	ledger     *store.LedgerStore
	hub        *websocket.Hub
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, ledger *store.LedgerStore, hub *websocket.Hub, dispatcher *notify.Dispatcher, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:      tasks,
		ledger:     ledger,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logging.Component(logger, "task"),
	}
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Kind        string     `json:"kind"`
	Reward      int64      `json:"reward"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Repeating   bool       `json:"repeating"`
	AssigneeID  *int64     `json:"assignee_id"`
}

// Create inserts a new task in todo status. An omitted kind means personal;
// an omitted end date means a single-day task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	kind := model.TaskKind(req.Kind)
	if req.Kind == "" {
		kind = model.TaskPersonal
	}
	if req.StartDate.IsZero() {
		req.StartDate = time.Now().UTC()
	}
	endDate := req.StartDate
	if req.EndDate != nil {
		endDate = *req.EndDate
	}

	task, err := h.tasks.Create(auth.AccountID(r.Context()), store.TaskFields{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Kind:        kind,
		Reward:      req.Reward,
		StartDate:   req.StartDate,
		EndDate:     endDate,
		Repeating:   req.Repeating,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("task", "created", task.ID, nil))
	writeJSON(w, http.StatusCreated, task)
}

// List returns the caller's tasks, optionally filtered by kind, status, or
// start date (?date=YYYY-MM-DD).
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var filters store.TaskFilters
	q := r.URL.Query()

	filters.Kind = model.TaskKind(q.Get("kind"))
	filters.Status = model.TaskStatus(q.Get("status"))
	if raw := q.Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD", "code": "invalid_input"})
			return
		}
		filters.Date = &date
	}

	tasks, err := h.tasks.List(auth.AccountID(r.Context()), filters)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Get returns one task the caller created or is assigned to.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id", "code": "invalid_input"})
		return
	}

	task, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	requester := auth.AccountID(r.Context())
	if task == nil || (task.CreatorID != requester && (task.AssigneeID == nil || *task.AssigneeID != requester)) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found", "code": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type taskPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// Update patches title and description, and moves status. A move to
// completed runs the ledger award, so the status flip and the coin credit
// commit together; completing an already-completed task returns the original
// award without paying again.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id", "code": "invalid_input"})
		return
	}

	var req taskPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON", "code": "invalid_input"})
		return
	}

	requester := auth.AccountID(r.Context())

	if req.Title != nil || req.Description != nil {
		if _, err := h.tasks.UpdateFields(id, requester, req.Title, req.Description); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	if req.Status != nil && model.TaskStatus(*req.Status) == model.StatusCompleted {
		h.complete(w, id, requester)
		return
	}

	if req.Status != nil {
		task, err := h.tasks.UpdateStatus(id, requester, model.TaskStatus(*req.Status))
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.broadcast(websocket.NewMessage("task", "updated", task.ID, map[string]any{"status": task.Status}))
		writeJSON(w, http.StatusOK, task)
		return
	}

	task, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found", "code": "not_found"})
		return
	}
	h.broadcast(websocket.NewMessage("task", "updated", task.ID, nil))
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) complete(w http.ResponseWriter, taskID, requester int64) {
	res, err := h.ledger.Award(taskID, requester)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if res.Awarded {
		h.dispatcher.EnqueueCoinsAwarded(notify.CoinsAwarded{
			AccountID:   res.Entry.AccountID,
			TaskID:      taskID,
			Amount:      res.Entry.Amount,
			Description: res.Entry.Description,
			AwardedAt:   time.Now().UTC(),
		})
		h.broadcast(websocket.NewMessage("task", "completed", taskID, map[string]any{
			"account_id": res.Entry.AccountID,
			"amount":     res.Entry.Amount,
		}))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task":    res.Task,
		"entry":   res.Entry,
		"awarded": res.Awarded,
	})
}

// Delete removes a task. Creator only; any award already in the ledger is
// untouched.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id", "code": "invalid_input"})
		return
	}

	if err := h.tasks.Delete(id, auth.AccountID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage("task", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
