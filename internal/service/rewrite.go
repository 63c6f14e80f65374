package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRewriteNotFound = errors.New("belief rewrite not found")

// AdaptivenessScorer rates a candidate rewrite against the belief it
// replaces; higher means more adaptive. Pluggable so the scoring model
// (evidentiary support, catastrophizing reduction, nuance) can evolve
// without touching the tracker.
type AdaptivenessScorer func(oldBelief, newBelief string) float64

// RewriteService validates and reads candidate belief rewrites. The
// reconsolidation window deadline and the persisted write both live in the
// orchestrator so a rewrite commits only together with its phase advance.
type RewriteService struct {
	rewrites domain.RewriteStore
	logger   *zap.Logger
}

func NewRewriteService(rs domain.RewriteStore, logger *zap.Logger) *RewriteService {
	return &RewriteService{
		rewrites: rs,
		logger:   logger,
	}
}

// RewriteInput is the inbound rewrite request.
type RewriteInput struct {
	InterventionID    uuid.UUID
	OldBeliefID       uuid.UUID
	NewBeliefContent  string
	AdaptivenessScore float64
}

// Build validates the input and constructs an unsaved rewrite.
func (s *RewriteService) Build(in RewriteInput) (*domain.BeliefRewrite, error) {
	if in.NewBeliefContent == "" {
		return nil, domain.Validationf("new_belief_content", "must not be empty")
	}
	if in.AdaptivenessScore < 0 || in.AdaptivenessScore > 1 {
		return nil, domain.Validationf("adaptiveness_score", "must be in [0,1], got %v", in.AdaptivenessScore)
	}

	return &domain.BeliefRewrite{
		InterventionID:    in.InterventionID,
		OldBeliefID:       in.OldBeliefID,
		NewBeliefContent:  in.NewBeliefContent,
		AdaptivenessScore: in.AdaptivenessScore,
	}, nil
}

func (s *RewriteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.BeliefRewrite, error) {
	r, err := s.rewrites.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRewriteNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RewriteService) GetByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.BeliefRewrite, error) {
	r, err := s.rewrites.GetByIntervention(ctx, interventionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRewriteNotFound
		}
		return nil, err
	}
	return r, nil
}

// ScoreAdaptiveness is the default scorer: it rewards added nuance (longer,
// more qualified statements) and divergence from the old absolute belief.
// Callers needing a better model install their own scorer.
func ScoreAdaptiveness(oldBelief, newBelief string) float64 {
	divergence := 1 - TokenSimilarity(oldBelief, newBelief)

	oldTokens := len(tokenSet(oldBelief))
	newTokens := len(tokenSet(newBelief))
	nuance := 0.0
	if newTokens > oldTokens && oldTokens > 0 {
		nuance = clamp01(float64(newTokens-oldTokens) / float64(oldTokens*2))
	}

	return clamp01(0.7*divergence + 0.3*nuance)
}
