package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pingvi/pingvi/internal/auth"
	"github.com/pingvi/pingvi/internal/logging"
	"github.com/pingvi/pingvi/internal/model"
	"github.com/pingvi/pingvi/internal/store"
)

type LedgerHandler struct {
	ledger   *store.LedgerStore
	accounts *store.AccountStore
	logger   *slog.Logger
}

func NewLedgerHandler(ledger *store.LedgerStore, accounts *store.AccountStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:   ledger,
		accounts: accounts,
		logger:   logging.Component(logger, "ledger"),
	}
}

// History returns coin ledger entries, most recent first. Callers see their
// own history by default; a guardian can pass ?account_id= to read a
// dependent's.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requester := auth.AccountID(r.Context())

	accountID := requester
	if raw := q.Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid account_id", "code": "invalid_input"})
			return
		}
		if id != requester {
			if !auth.IsGuardian(r.Context()) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "code": "forbidden"})
				return
			}
			owned, err := h.accounts.IsDependentOf(id, requester)
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
			if !owned {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "code": "forbidden"})
				return
			}
		}
		accountID = id
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500", "code": "invalid_input"})
			return
		}
		limit = n
	}

	entries, err := h.ledger.History(accountID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	balance, err := h.ledger.Balance(accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance,
		"entries":    entries,
	})
}
