package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/Harshitk-cp/reframe/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// conflictResponse carries the phase the intervention is actually in so the
// client knows where to resume.
type conflictResponse struct {
	Error        string `json:"error"`
	CurrentPhase string `json:"current_phase,omitempty"`
}

// handleServiceError maps service errors to HTTP status codes. fallback is
// the message for unclassified errors.
func handleServiceError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var conflictErr *domain.StateConflictError
	if errors.As(err, &conflictErr) {
		resp := conflictResponse{Error: conflictErr.Error()}
		if conflictErr.CurrentPhase != 0 {
			resp.CurrentPhase = conflictErr.CurrentPhase.String()
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, service.ErrCaptureNotFound),
		errors.Is(err, service.ErrPatternNotFound),
		errors.Is(err, service.ErrInterventionNotFound),
		errors.Is(err, service.ErrPredictionNotFound),
		errors.Is(err, service.ErrRewriteNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInterventionDeferred):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
