package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/reframe/internal/service"
)

// CognitiveHandler exposes manual triggers for the background maintenance
// loops.
type CognitiveHandler struct {
	decay   *service.DecayService
	expirer *service.PauseExpirer
}

func NewCognitiveHandler(decay *service.DecayService, expirer *service.PauseExpirer) *CognitiveHandler {
	return &CognitiveHandler{decay: decay, expirer: expirer}
}

// TriggerDecay runs a full decay scan immediately.
func (h *CognitiveHandler) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	result := h.decay.RunScan(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// TriggerExpiry sweeps paused interventions that outlived the pause timeout.
func (h *CognitiveHandler) TriggerExpiry(w http.ResponseWriter, r *http.Request) {
	abandoned := h.expirer.RunSweep(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"abandoned": abandoned})
}
