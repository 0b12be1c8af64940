// Package handler implements the JSON HTTP API over the stores.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pingvi/pingvi/internal/store"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response", "error", err)
	}
}

// writeError maps store sentinel failures to HTTP statuses with a
// machine-readable code. Anything unrecognized is a 500 with the detail
// kept out of the response body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	type body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}

	switch {
	case errors.Is(err, store.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, body{Error: "invalid input", Code: "invalid_input"})
	case errors.Is(err, store.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, body{Error: "invalid credentials", Code: "invalid_credentials"})
	case errors.Is(err, store.ErrForbidden):
		writeJSON(w, http.StatusForbidden, body{Error: "forbidden", Code: "forbidden"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, body{Error: "not found", Code: "not_found"})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, body{Error: "conflict", Code: "conflict"})
	default:
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, body{Error: "internal error", Code: "internal"})
	}
}
