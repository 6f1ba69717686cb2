// Package service implements the HTTP API: authentication, rooms and
// membership, invite joins, and the event planning workflow.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/planora/planora/internal/fielderrors"
	"github.com/planora/planora/internal/storage"
)

// errorBody is the wire shape for every error response. Detail is either
// a string or a list of fielderrors.Item; clients normalize it with the
// fielderrors package.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message, Detail: message})
}

// writeFieldErrors emits a 422 with one {loc, msg} item per invalid field.
func writeFieldErrors(w http.ResponseWriter, items []fielderrors.Item) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Code:    "validation_error",
		Message: "Validation failed",
		Detail:  items,
	})
}

// fieldError builds a body-rooted validation item for one field.
func fieldError(field, msg string) fielderrors.Item {
	return fielderrors.Item{Loc: []any{"body", field}, Msg: msg}
}

// writeStorageError maps storage sentinels onto HTTP statuses; anything
// unrecognized is a 500 with a generic message.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", "Resource already exists")
	case errors.Is(err, storage.ErrStalePhase):
		writeError(w, http.StatusConflict, "stale_phase", "Event phase changed, reload and retry")
	default:
		slog.Error("storage error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

// decodeBody parses a JSON request body into dst. A malformed body is
// reported as a single body-level validation item.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFieldErrors(w, []fielderrors.Item{
			{Loc: []any{"body"}, Msg: "Invalid JSON body"},
		})
		return false
	}
	return true
}
