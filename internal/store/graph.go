package store

import (
	"context"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
)

// GraphStore is the long-term home for belief networks once a pattern
// resolves. Write-mostly; the working-memory tables stay authoritative until
// resolution.
type GraphStore struct {
	db Querier
}

func NewGraphStore(db Querier) *GraphStore {
	return &GraphStore{db: db}
}

func (s *GraphStore) CreateNode(ctx context.Context, n *domain.BeliefNode) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO belief_nodes (pattern_id, rewrite_id, content, adaptiveness)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			n.PatternID, n.RewriteID, n.Content, n.Adaptiveness,
		).Scan(&n.ID, &n.CreatedAt)
	})
}

func (s *GraphStore) CreateEdge(ctx context.Context, e *domain.BeliefEdge) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO belief_edges (source_id, target_id, relation_type, strength)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (source_id, target_id, relation_type) DO UPDATE
			 SET strength = GREATEST(belief_edges.strength, EXCLUDED.strength)
			 RETURNING id, created_at`,
			e.SourceID, e.TargetID, e.RelationType, e.Strength,
		).Scan(&e.ID, &e.CreatedAt)
	})
}

func (s *GraphStore) GetNeighbors(ctx context.Context, nodeID uuid.UUID) ([]domain.BeliefEdge, error) {
	var edges []domain.BeliefEdge
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT id, source_id, target_id, relation_type, strength, created_at
			 FROM belief_edges
			 WHERE source_id = $1 OR target_id = $1`,
			nodeID)
		if err != nil {
			return err
		}
		defer rows.Close()

		edges = edges[:0]
		for rows.Next() {
			var e domain.BeliefEdge
			if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.RelationType, &e.Strength, &e.CreatedAt); err != nil {
				return err
			}
			edges = append(edges, e)
		}
		return rows.Err()
	})
	return edges, err
}
