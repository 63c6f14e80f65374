package service

import (
	"context"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"go.uber.org/zap"
)

// ConsolidationService pushes a resolved pattern into the long-term belief
// graph: the old belief and its replacement become nodes joined by a
// supersedes edge whose strength is the rewrite's adaptiveness.
type ConsolidationService struct {
	logger *zap.Logger
}

func NewConsolidationService(logger *zap.Logger) *ConsolidationService {
	return &ConsolidationService{logger: logger}
}

// Consolidate writes through the supplied store bundle so the caller can run
// it inside the same transaction that resolves the pattern.
func (s *ConsolidationService) Consolidate(ctx context.Context, stores domain.Stores, pattern *domain.MaladaptivePattern, rewrite *domain.BeliefRewrite) error {
	oldNode := &domain.BeliefNode{
		PatternID:    &pattern.ID,
		Content:      pattern.BeliefContent,
		Adaptiveness: 0,
	}
	if err := stores.Graph.CreateNode(ctx, oldNode); err != nil {
		return err
	}

	newNode := &domain.BeliefNode{
		RewriteID:    &rewrite.ID,
		Content:      rewrite.NewBeliefContent,
		Adaptiveness: rewrite.AdaptivenessScore,
	}
	if err := stores.Graph.CreateNode(ctx, newNode); err != nil {
		return err
	}

	edge := &domain.BeliefEdge{
		SourceID:     newNode.ID,
		TargetID:     oldNode.ID,
		RelationType: domain.RelationSupersedes,
		Strength:     rewrite.AdaptivenessScore,
	}
	if err := stores.Graph.CreateEdge(ctx, edge); err != nil {
		return err
	}

	s.logger.Info("belief consolidated",
		zap.String("pattern_id", pattern.ID.String()),
		zap.String("rewrite_id", rewrite.ID.String()),
		zap.Float64("strength", edge.Strength))
	return nil
}
