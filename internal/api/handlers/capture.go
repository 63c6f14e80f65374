package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CaptureHandler struct {
	svc   *service.CaptureService
	decay *service.DecayService
}

func NewCaptureHandler(svc *service.CaptureService, decay *service.DecayService) *CaptureHandler {
	return &CaptureHandler{svc: svc, decay: decay}
}

func (h *CaptureHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid capture id")
		return
	}

	capture, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get capture")
		return
	}

	writeJSON(w, http.StatusOK, capture)
}

// Decay recomputes and persists the capture's confidence as of now, outside
// the background scan schedule.
func (h *CaptureHandler) Decay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid capture id")
		return
	}

	capture, err := h.decay.ApplyDecayByID(r.Context(), id, time.Now())
	if err != nil {
		handleServiceError(w, err, "failed to apply decay")
		return
	}

	writeJSON(w, http.StatusOK, capture)
}
