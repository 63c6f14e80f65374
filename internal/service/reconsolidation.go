package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrPredictionNotFound = errors.New("prediction error not found")

// ReconsolidationService computes the belief-vs-reality mismatch and opens
// the reconsolidation window. The orchestrator persists the result together
// with the phase transition it triggers.
type ReconsolidationService struct {
	predictions domain.PredictionStore
	similarity  SimilarityFunc
	window      time.Duration
	logger      *zap.Logger

	now func() time.Time
}

func NewReconsolidationService(ps domain.PredictionStore, similarity SimilarityFunc, cfg Config, logger *zap.Logger) *ReconsolidationService {
	if similarity == nil {
		similarity = TokenSimilarity
	}
	return &ReconsolidationService{
		predictions: ps,
		similarity:  similarity,
		window:      cfg.ReconsolidationWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// Compute extracts the core belief from the cognitions window and the
// observed outcome strictly from senses and actions, then scores their
// divergence. The window deadline is fixed here and never extended; an
// expired window is reopened only by replaying the capture phase.
func (s *ReconsolidationService) Compute(capture *domain.FiveWindowCapture) (*domain.PredictionError, error) {
	belief := capture.CoreBelief()
	if belief == "" {
		return nil, domain.Validationf("cognitions", "no core belief sub-field present")
	}

	observed := observedOutcome(capture)
	if observed == "" {
		return nil, domain.Validationf("senses", "no observable outcome content in senses or actions")
	}

	magnitude := clamp01(1 - s.similarity(belief, observed))
	opened := s.now()

	return &domain.PredictionError{
		InterventionID:  capture.InterventionID,
		CoreBelief:      belief,
		ObservedOutcome: observed,
		ErrorMagnitude:  magnitude,
		WindowOpenedAt:  opened,
		WindowExpiresAt: opened.Add(s.window),
	}, nil
}

func (s *ReconsolidationService) LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.PredictionError, error) {
	pe, err := s.predictions.LatestByIntervention(ctx, interventionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return pe, nil
}

// observedOutcome assembles ground truth from the senses and actions windows
// only. Cognitions never feed it: the prediction error compares belief to
// sensed reality, not belief to the subject's own interpretation.
func observedOutcome(c *domain.FiveWindowCapture) string {
	var parts []string
	for _, payload := range []domain.WindowPayload{c.Senses, c.Actions} {
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := strings.TrimSpace(payload[k]); v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, " ")
}
