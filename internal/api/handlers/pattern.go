package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PatternHandler struct {
	detector *service.DetectorService
	captures *service.CaptureService
	orch     *service.OrchestratorService
}

func NewPatternHandler(detector *service.DetectorService, captures *service.CaptureService, orch *service.OrchestratorService) *PatternHandler {
	return &PatternHandler{detector: detector, captures: captures, orch: orch}
}

type detectPatternRequest struct {
	CaptureIDs      []string          `json:"capture_ids"`
	CandidateBelief string            `json:"candidate_belief"`
	Domain          string            `json:"domain,omitempty"`
	TriggerContext  map[string]string `json:"trigger_context,omitempty"`
	AsOf            string            `json:"as_of,omitempty"` // RFC3339 format
}

// Detect runs pattern detection over the referenced capture history. A 200
// with a null pattern means the candidate belief is below the recurrence
// threshold; that is an answer, not an error.
func (h *PatternHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectPatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Domain != "" && !domain.ValidPatternDomain(req.Domain) {
		writeError(w, http.StatusBadRequest, "invalid domain")
		return
	}

	input := service.DetectInput{
		CandidateBelief: req.CandidateBelief,
		Domain:          domain.PatternDomain(req.Domain),
		TriggerContext:  req.TriggerContext,
	}

	if req.AsOf != "" {
		t, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of format (use RFC3339)")
			return
		}
		input.AsOf = t
	}

	for _, raw := range req.CaptureIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid capture id: "+raw)
			return
		}
		capture, err := h.captures.GetByID(r.Context(), id)
		if err != nil {
			handleServiceError(w, err, "failed to load capture history")
			return
		}
		input.History = append(input.History, *capture)
	}

	pattern, err := h.detector.Detect(r.Context(), input)
	if err != nil {
		handleServiceError(w, err, "failed to detect pattern")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pattern":  pattern,
		"detected": pattern != nil,
	})
}

func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	var q domain.PatternQuery

	if d := r.URL.Query().Get("domain"); d != "" {
		if !domain.ValidPatternDomain(d) {
			writeError(w, http.StatusBadRequest, "invalid domain")
			return
		}
		pd := domain.PatternDomain(d)
		q.Domain = &pd
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !domain.ValidPatternStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		ps := domain.PatternStatus(s)
		q.Status = &ps
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	patterns, err := h.detector.ListPatterns(r.Context(), q)
	if err != nil {
		handleServiceError(w, err, "failed to list patterns")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

func (h *PatternHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	pattern, err := h.detector.GetPattern(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to get pattern")
		return
	}

	writeJSON(w, http.StatusOK, pattern)
}

// StartIntervention opens a five-phase intervention run for the pattern.
func (h *PatternHandler) StartIntervention(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern id")
		return
	}

	intervention, err := h.orch.Start(r.Context(), id)
	if err != nil {
		handleServiceError(w, err, "failed to start intervention")
		return
	}

	writeJSON(w, http.StatusCreated, intervention)
}
