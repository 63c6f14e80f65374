package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PredictionStore struct {
	db Querier
}

func NewPredictionStore(db Querier) *PredictionStore {
	return &PredictionStore{db: db}
}

const predictionColumns = `id, intervention_id, core_belief, observed_outcome,
	error_magnitude, window_opened_at, window_expires_at, created_at`

func (s *PredictionStore) Create(ctx context.Context, p *domain.PredictionError) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO prediction_errors (intervention_id, core_belief, observed_outcome,
			        error_magnitude, window_opened_at, window_expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			p.InterventionID, p.CoreBelief, p.ObservedOutcome,
			p.ErrorMagnitude, p.WindowOpenedAt, p.WindowExpiresAt,
		).Scan(&p.ID, &p.CreatedAt)
	})
}

func (s *PredictionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PredictionError, error) {
	p := &domain.PredictionError{}
	err := withRetry(ctx, func() error {
		return scanPrediction(s.db.QueryRow(ctx,
			`SELECT `+predictionColumns+` FROM prediction_errors WHERE id = $1`, id), p)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PredictionStore) LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.PredictionError, error) {
	p := &domain.PredictionError{}
	err := withRetry(ctx, func() error {
		return scanPrediction(s.db.QueryRow(ctx,
			`SELECT `+predictionColumns+` FROM prediction_errors
			 WHERE intervention_id = $1 ORDER BY created_at DESC LIMIT 1`, interventionID), p)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func scanPrediction(row pgx.Row, p *domain.PredictionError) error {
	return row.Scan(
		&p.ID, &p.InterventionID, &p.CoreBelief, &p.ObservedOutcome,
		&p.ErrorMagnitude, &p.WindowOpenedAt, &p.WindowExpiresAt, &p.CreatedAt,
	)
}
