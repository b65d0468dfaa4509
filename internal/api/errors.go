package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/logbook/internal/backup"
	"github.com/kalambet/logbook/internal/imagepool"
	"github.com/kalambet/logbook/internal/logbook"
	"github.com/kalambet/logbook/internal/query"
	"github.com/kalambet/logbook/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// isBadInput reports whether err was caused by the caller's input.
func isBadInput(err error) bool {
	for _, target := range []error{
		storage.ErrInvalidTimestamp,
		storage.ErrNotArray,
		backup.ErrMalformedBackup,
		query.ErrInvalidDate,
		query.ErrUnknownField,
		imagepool.ErrEmptyURL,
		logbook.ErrNotConfirmed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// serviceError maps a Service error to a status and writes it.
func serviceError(w http.ResponseWriter, err error, action string) {
	switch {
	case isBadInput(err):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%s: not found", action)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s: %v", action, err)
	}
}
