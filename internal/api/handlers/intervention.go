package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type InterventionHandler struct {
	orch     *service.OrchestratorService
	recon    *service.ReconsolidationService
	rewrites *service.RewriteService
}

func NewInterventionHandler(orch *service.OrchestratorService, recon *service.ReconsolidationService, rewrites *service.RewriteService) *InterventionHandler {
	return &InterventionHandler{orch: orch, recon: recon, rewrites: rewrites}
}

func (h *InterventionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	intervention, err := h.orch.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get intervention")
		return
	}

	writeJSON(w, http.StatusOK, intervention)
}

// Advance acknowledges the interrupt and moves the run to guided capture.
func (h *InterventionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	intervention, err := h.orch.AdvanceToCapture(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to advance intervention")
		return
	}

	writeJSON(w, http.StatusOK, intervention)
}

type submitCaptureRequest struct {
	Senses               map[string]string `json:"senses"`
	Actions              map[string]string `json:"actions"`
	Emotions             map[string]string `json:"emotions"`
	Impulses             map[string]string `json:"impulses"`
	Cognitions           map[string]string `json:"cognitions"`
	Context              map[string]string `json:"context,omitempty"`
	EmotionalIntensity   float64           `json:"emotional_intensity"`
	PreserveIndefinitely bool              `json:"preserve_indefinitely,omitempty"`
}

func (h *InterventionHandler) SubmitCapture(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	var req submitCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	capture, err := h.orch.SubmitCapture(r.Context(), service.CaptureInput{
		InterventionID:       id,
		Senses:               req.Senses,
		Actions:              req.Actions,
		Emotions:             req.Emotions,
		Impulses:             req.Impulses,
		Cognitions:           req.Cognitions,
		Context:              req.Context,
		EmotionalIntensity:   req.EmotionalIntensity,
		PreserveIndefinitely: req.PreserveIndefinitely,
	})
	if err != nil {
		handleServiceError(w, err, "failed to submit capture")
		return
	}

	writeJSON(w, http.StatusCreated, capture)
}

// ComputeMismatch scores the prediction error for the run's latest capture.
func (h *InterventionHandler) ComputeMismatch(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	pe, err := h.orch.ComputeMismatch(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to compute mismatch")
		return
	}

	intervention, err := h.orch.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get intervention")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prediction_error": pe,
		"phase":            intervention.Phase.String(),
		"status":           intervention.Status,
	})
}

type submitRewriteRequest struct {
	OldBeliefID       string  `json:"old_belief_id"`
	NewBeliefContent  string  `json:"new_belief_content"`
	AdaptivenessScore float64 `json:"adaptiveness_score"`
}

func (h *InterventionHandler) SubmitRewrite(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	var req submitRewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	oldBeliefID, err := uuid.Parse(req.OldBeliefID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid old_belief_id")
		return
	}

	rewrite, err := h.orch.SubmitRewrite(r.Context(), service.RewriteInput{
		InterventionID:    id,
		OldBeliefID:       oldBeliefID,
		NewBeliefContent:  req.NewBeliefContent,
		AdaptivenessScore: req.AdaptivenessScore,
	})
	if err != nil {
		handleServiceError(w, err, "failed to submit rewrite")
		return
	}

	writeJSON(w, http.StatusCreated, rewrite)
}

type recordEncounterRequest struct {
	BeliefID          string `json:"belief_id,omitempty"`
	TriggerOccurredAt string `json:"trigger_occurred_at,omitempty"` // RFC3339 format
	PredictionContent string `json:"prediction_content"`
	ObservedOutcome   string `json:"observed_outcome"`
	PredictionCorrect bool   `json:"prediction_correct"`
	BeliefActivated   string `json:"belief_activated"`
}

// RecordEncounter logs a verification encounter. belief_id defaults to the
// run's own rewrite when omitted.
func (h *InterventionHandler) RecordEncounter(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	var req recordEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.EncounterInput{
		InterventionID:    id,
		PredictionContent: req.PredictionContent,
		ObservedOutcome:   req.ObservedOutcome,
		PredictionCorrect: req.PredictionCorrect,
		BeliefActivated:   domain.BeliefActivation(req.BeliefActivated),
	}

	if req.BeliefID != "" {
		beliefID, err := uuid.Parse(req.BeliefID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid belief_id")
			return
		}
		input.BeliefID = beliefID
	} else {
		rewrite, err := h.rewrites.GetByIntervention(r.Context(), id)
		if err != nil {
			if errors.Is(err, service.ErrRewriteNotFound) {
				writeError(w, http.StatusBadRequest, "no rewrite exists for this intervention yet")
				return
			}
			handleServiceError(w, err, "failed to resolve belief")
			return
		}
		input.BeliefID = rewrite.ID
	}

	if req.TriggerOccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.TriggerOccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid trigger_occurred_at format (use RFC3339)")
			return
		}
		input.TriggerOccurredAt = t
	}

	result, err := h.orch.RecordEncounter(r.Context(), input)
	if err != nil {
		handleServiceError(w, err, "failed to record encounter")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Mismatch returns the latest prediction error for the run.
func (h *InterventionHandler) Mismatch(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	pe, err := h.recon.LatestByIntervention(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get prediction error")
		return
	}

	writeJSON(w, http.StatusOK, pe)
}

func (h *InterventionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	intervention, err := h.orch.Pause(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to pause intervention")
		return
	}

	writeJSON(w, http.StatusOK, intervention)
}

func (h *InterventionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	intervention, err := h.orch.Resume(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to resume intervention")
		return
	}

	writeJSON(w, http.StatusOK, intervention)
}

func (h *InterventionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	if err := h.orch.Abandon(r.Context(), id); err != nil {
		handleServiceError(w, err, "failed to abandon intervention")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func interventionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid intervention id")
		return uuid.Nil, false
	}
	return id, true
}
