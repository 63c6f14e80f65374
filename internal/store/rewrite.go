package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RewriteStore struct {
	db Querier
}

func NewRewriteStore(db Querier) *RewriteStore {
	return &RewriteStore{db: db}
}

const rewriteColumns = `id, intervention_id, old_belief_id, new_belief_content,
	adaptiveness_score, prediction_count, success_count, failure_count, created_at, updated_at`

func (s *RewriteStore) Create(ctx context.Context, r *domain.BeliefRewrite) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO belief_rewrites (intervention_id, old_belief_id, new_belief_content, adaptiveness_score)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at, updated_at`,
			r.InterventionID, r.OldBeliefID, r.NewBeliefContent, r.AdaptivenessScore,
		).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	})
}

func (s *RewriteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BeliefRewrite, error) {
	r := &domain.BeliefRewrite{}
	err := withRetry(ctx, func() error {
		return scanRewrite(s.db.QueryRow(ctx,
			`SELECT `+rewriteColumns+` FROM belief_rewrites WHERE id = $1`, id), r)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RewriteStore) GetByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.BeliefRewrite, error) {
	r := &domain.BeliefRewrite{}
	err := withRetry(ctx, func() error {
		return scanRewrite(s.db.QueryRow(ctx,
			`SELECT `+rewriteColumns+` FROM belief_rewrites
			 WHERE intervention_id = $1 ORDER BY created_at DESC LIMIT 1`, interventionID), r)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RewriteStore) RecordPrediction(ctx context.Context, id uuid.UUID, outcome *bool) error {
	successDelta, failureDelta := 0, 0
	if outcome != nil {
		if *outcome {
			successDelta = 1
		} else {
			failureDelta = 1
		}
	}

	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE belief_rewrites
			 SET prediction_count = prediction_count + 1,
			     success_count = success_count + $1,
			     failure_count = failure_count + $2,
			     updated_at = NOW()
			 WHERE id = $3`,
			successDelta, failureDelta, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanRewrite(row pgx.Row, r *domain.BeliefRewrite) error {
	return row.Scan(
		&r.ID, &r.InterventionID, &r.OldBeliefID, &r.NewBeliefContent,
		&r.AdaptivenessScore, &r.PredictionCount, &r.SuccessCount, &r.FailureCount,
		&r.CreatedAt, &r.UpdatedAt,
	)
}
