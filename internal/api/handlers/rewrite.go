package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type RewriteHandler struct {
	rewrites     *service.RewriteService
	verification *service.VerificationService
}

func NewRewriteHandler(rewrites *service.RewriteService, verification *service.VerificationService) *RewriteHandler {
	return &RewriteHandler{rewrites: rewrites, verification: verification}
}

func (h *RewriteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rewrite id")
		return
	}

	rewrite, err := h.rewrites.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get rewrite")
		return
	}

	writeJSON(w, http.StatusOK, rewrite)
}

// Verification summarizes the encounter history and success rate for the
// belief. success_rate is absent while no outcome has been attributed yet.
func (h *RewriteHandler) Verification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rewrite id")
		return
	}

	history, err := h.verification.History(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get verification history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}
