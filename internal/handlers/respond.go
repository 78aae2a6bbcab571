package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/salonbook/salonbook/internal/apperr"
)

// errUnauthorized is the only error class the middleware itself produces; the
// rest of the taxonomy comes from the booking core.
var errUnauthorized = errors.New("missing or invalid credentials")

type errorResponse struct {
	Error          string `json:"error"`
	SuggestedStart string `json:"suggested_start,omitempty"`
	SuggestedEnd   string `json:"suggested_end,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto the HTTP surface. Conflicts carry
// the advisory alternative window; anything unrecognized is a 500 with a
// generic body so internals never leak to clients.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, errUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errUnauthorized.Error()})
	case apperr.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case apperr.IsAuthorization(err):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	default:
		if conflict, ok := apperr.AsConflict(err); ok {
			writeJSON(w, http.StatusConflict, errorResponse{
				Error:          conflict.Reason,
				SuggestedStart: conflict.SuggestedStart.UTC().Format(time.RFC3339),
				SuggestedEnd:   conflict.SuggestedEnd.UTC().Format(time.RFC3339),
			})
			return
		}
		if logger != nil {
			logger.Error("request failed", "err", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
