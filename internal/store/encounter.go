package store

import (
	"context"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
)

type EncounterStore struct {
	db Querier
}

func NewEncounterStore(db Querier) *EncounterStore {
	return &EncounterStore{db: db}
}

func (s *EncounterStore) Create(ctx context.Context, e *domain.VerificationEncounter) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO verification_encounters (belief_id, intervention_id, trigger_occurred_at,
			        prediction_content, observed_outcome, prediction_correct, belief_activated)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			e.BeliefID, e.InterventionID, e.TriggerOccurredAt,
			e.PredictionContent, e.ObservedOutcome, e.PredictionCorrect, e.BeliefActivated,
		).Scan(&e.ID, &e.CreatedAt)
	})
}

func (s *EncounterStore) ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]domain.VerificationEncounter, error) {
	var encounters []domain.VerificationEncounter
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT id, belief_id, intervention_id, trigger_occurred_at,
			        prediction_content, observed_outcome, prediction_correct, belief_activated, created_at
			 FROM verification_encounters
			 WHERE belief_id = $1
			 ORDER BY trigger_occurred_at ASC`,
			beliefID)
		if err != nil {
			return err
		}
		defer rows.Close()

		encounters = encounters[:0]
		for rows.Next() {
			var e domain.VerificationEncounter
			err := rows.Scan(
				&e.ID, &e.BeliefID, &e.InterventionID, &e.TriggerOccurredAt,
				&e.PredictionContent, &e.ObservedOutcome, &e.PredictionCorrect, &e.BeliefActivated, &e.CreatedAt,
			)
			if err != nil {
				return err
			}
			encounters = append(encounters, e)
		}
		return rows.Err()
	})
	return encounters, err
}

func (s *EncounterStore) CountByBelief(ctx context.Context, beliefID uuid.UUID) (int, error) {
	var count int
	err := withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM verification_encounters WHERE belief_id = $1`,
			beliefID).Scan(&count)
	})
	return count, err
}
