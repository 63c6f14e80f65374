package service

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConsolidateWritesSupersedesEdge(t *testing.T) {
	ctx := context.Background()
	stores, m := newMocks()
	svc := NewConsolidationService(zap.NewNop())

	pattern := &domain.MaladaptivePattern{
		ID:            uuid.New(),
		BeliefContent: "they will abandon me",
	}
	rewrite := &domain.BeliefRewrite{
		ID:                uuid.New(),
		NewBeliefContent:  "some people stay, and leaving is survivable",
		AdaptivenessScore: 0.8,
	}

	err := svc.Consolidate(ctx, stores, pattern, rewrite)
	assert.NoError(t, err)

	assert.Len(t, m.graph.nodes, 2)
	assert.Len(t, m.graph.edges, 1)

	oldNode, newNode := m.graph.nodes[0], m.graph.nodes[1]
	assert.Equal(t, pattern.BeliefContent, oldNode.Content)
	assert.NotNil(t, oldNode.PatternID)
	assert.Equal(t, pattern.ID, *oldNode.PatternID)
	assert.Zero(t, oldNode.Adaptiveness)

	assert.Equal(t, rewrite.NewBeliefContent, newNode.Content)
	assert.NotNil(t, newNode.RewriteID)
	assert.Equal(t, rewrite.ID, *newNode.RewriteID)
	assert.Equal(t, rewrite.AdaptivenessScore, newNode.Adaptiveness)

	edge := m.graph.edges[0]
	assert.Equal(t, newNode.ID, edge.SourceID)
	assert.Equal(t, oldNode.ID, edge.TargetID)
	assert.Equal(t, domain.RelationSupersedes, edge.RelationType)
	assert.Equal(t, rewrite.AdaptivenessScore, edge.Strength)
}

func TestConsolidatedBeliefNeighbors(t *testing.T) {
	ctx := context.Background()
	stores, m := newMocks()
	svc := NewConsolidationService(zap.NewNop())

	pattern := &domain.MaladaptivePattern{ID: uuid.New(), BeliefContent: "I always fail"}
	rewrite := &domain.BeliefRewrite{ID: uuid.New(), NewBeliefContent: "sometimes I fail", AdaptivenessScore: 0.6}

	assert.NoError(t, svc.Consolidate(ctx, stores, pattern, rewrite))

	neighbors, err := stores.Graph.GetNeighbors(ctx, m.graph.nodes[0].ID)
	assert.NoError(t, err)
	assert.Len(t, neighbors, 1)
}
