package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors onto status codes. Unexpected errors
// are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, core.ErrNotConfigured.Error())
	case errors.Is(err, services.ErrInvalidExamType), errors.Is(err, services.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.Error("http.internal_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
