package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VerificationService records post-rewrite trigger encounters and tracks
// whether the new belief is superseding the old one.
type VerificationService struct {
	encounters domain.EncounterStore
	rewrites   domain.RewriteStore
	logger     *zap.Logger

	minEncounters int
	target        float64
}

func NewVerificationService(es domain.EncounterStore, rs domain.RewriteStore, cfg Config, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		encounters:    es,
		rewrites:      rs,
		logger:        logger,
		minEncounters: cfg.MinVerificationEncounters,
		target:        cfg.SuccessRateTarget,
	}
}

// EncounterInput is the inbound verification request.
type EncounterInput struct {
	BeliefID          uuid.UUID
	InterventionID    uuid.UUID
	TriggerOccurredAt time.Time
	PredictionContent string
	ObservedOutcome   string
	PredictionCorrect bool
	BeliefActivated   domain.BeliefActivation
}

// Build validates the input and constructs an unsaved encounter plus the
// counter outcome to attribute. Every encounter bumps predictionCount;
// success and failure are attributed only when the new belief actually
// activated, so old-belief relapses count against neither. The returned
// outcome is nil for old-belief activations.
func (s *VerificationService) Build(in EncounterInput) (*domain.VerificationEncounter, *bool, error) {
	if !domain.ValidBeliefActivation(string(in.BeliefActivated)) {
		return nil, nil, domain.Validationf("belief_activated", "must be %q or %q", domain.ActivatedOld, domain.ActivatedNew)
	}
	if in.TriggerOccurredAt.IsZero() {
		in.TriggerOccurredAt = time.Now()
	}

	encounter := &domain.VerificationEncounter{
		BeliefID:          in.BeliefID,
		InterventionID:    in.InterventionID,
		TriggerOccurredAt: in.TriggerOccurredAt,
		PredictionContent: in.PredictionContent,
		ObservedOutcome:   in.ObservedOutcome,
		PredictionCorrect: in.PredictionCorrect,
		BeliefActivated:   in.BeliefActivated,
	}

	var outcome *bool
	if in.BeliefActivated == domain.ActivatedNew {
		correct := in.PredictionCorrect
		outcome = &correct
	}
	return encounter, outcome, nil
}

// SuccessRate returns the rolling success rate for the belief. ok is false
// when no outcome has been attributed yet; the rate is undefined then, never
// zero.
func (s *VerificationService) SuccessRate(ctx context.Context, beliefID uuid.UUID) (rate float64, ok bool, err error) {
	rewrite, err := s.rewrites.GetByID(ctx, beliefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, false, ErrRewriteNotFound
		}
		return 0, false, err
	}
	rate, ok = rewrite.SuccessRate()
	return rate, ok, nil
}

// ShouldFollowUp signals the orchestrator to re-arm phase 1: enough
// encounters have accumulated and the new belief is not winning.
func (s *VerificationService) ShouldFollowUp(ctx context.Context, beliefID uuid.UUID) (bool, error) {
	count, err := s.encounters.CountByBelief(ctx, beliefID)
	if err != nil {
		return false, err
	}
	if count < s.minEncounters {
		return false, nil
	}
	rate, ok, err := s.SuccessRate(ctx, beliefID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return rate < s.target, nil
}

// History summarizes the encounter log for one belief.
func (s *VerificationService) History(ctx context.Context, beliefID uuid.UUID) (*domain.VerificationHistory, error) {
	rewrite, err := s.rewrites.GetByID(ctx, beliefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRewriteNotFound
		}
		return nil, err
	}
	count, err := s.encounters.CountByBelief(ctx, beliefID)
	if err != nil {
		return nil, err
	}

	history := &domain.VerificationHistory{
		BeliefID:        beliefID,
		TotalEncounters: count,
		SuccessCount:    rewrite.SuccessCount,
		FailureCount:    rewrite.FailureCount,
	}
	if rate, ok := rewrite.SuccessRate(); ok {
		history.SuccessRate = &rate
	}
	return history, nil
}
