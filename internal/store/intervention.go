package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InterventionStore struct {
	db Querier
}

func NewInterventionStore(db Querier) *InterventionStore {
	return &InterventionStore{db: db}
}

const interventionColumns = `id, pattern_id, phase, status, mismatch_retries,
	started_at, paused_at, completed_at, created_at, updated_at`

func (s *InterventionStore) Create(ctx context.Context, i *domain.Intervention) error {
	if i.Phase == 0 {
		i.Phase = domain.PhaseInterrupt
	}
	if i.Status == "" {
		i.Status = domain.InterventionActive
	}

	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO interventions (pattern_id, phase, status)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at, updated_at`,
			i.PatternID, int(i.Phase), i.Status,
		).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	})
}

func (s *InterventionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Intervention, error) {
	i := &domain.Intervention{}
	err := withRetry(ctx, func() error {
		return scanIntervention(s.db.QueryRow(ctx,
			`SELECT `+interventionColumns+` FROM interventions WHERE id = $1`, id), i)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

func (s *InterventionStore) GetActiveByPattern(ctx context.Context, patternID uuid.UUID) (*domain.Intervention, error) {
	i := &domain.Intervention{}
	err := withRetry(ctx, func() error {
		return scanIntervention(s.db.QueryRow(ctx,
			`SELECT `+interventionColumns+` FROM interventions
			 WHERE pattern_id = $1 AND status IN ('active', 'paused')
			 ORDER BY created_at DESC LIMIT 1`, patternID), i)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

func (s *InterventionStore) AdvancePhase(ctx context.Context, id uuid.UUID, from, to domain.Phase) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET phase = $1, updated_at = NOW()
			 WHERE id = $2 AND phase = $3 AND status = 'active'`,
			int(to), id, int(from))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET started_at = $1, updated_at = NOW()
			 WHERE id = $2 AND started_at IS NULL`,
			at, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) Pause(ctx context.Context, id uuid.UUID, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET status = 'paused', paused_at = $1, updated_at = NOW()
			 WHERE id = $2 AND status = 'active'`,
			at, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) Resume(ctx context.Context, id uuid.UUID) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET status = 'active', paused_at = NULL, updated_at = NOW()
			 WHERE id = $1 AND status = 'paused'`,
			id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) Complete(ctx context.Context, id uuid.UUID, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET status = 'completed', completed_at = $1, updated_at = NOW()
			 WHERE id = $2 AND status = 'active'`,
			at, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) Abandon(ctx context.Context, id uuid.UUID, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE interventions SET status = 'abandoned', completed_at = $1, updated_at = NOW()
			 WHERE id = $2 AND status IN ('active', 'paused')`,
			at, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *InterventionStore) IncrementMismatchRetries(ctx context.Context, id uuid.UUID) (int, error) {
	var retries int
	err := withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`UPDATE interventions SET mismatch_retries = mismatch_retries + 1, updated_at = NOW()
			 WHERE id = $1
			 RETURNING mismatch_retries`,
			id).Scan(&retries)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return retries, nil
}

func (s *InterventionStore) ListPausedBefore(ctx context.Context, cutoff time.Time) ([]domain.Intervention, error) {
	var interventions []domain.Intervention
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT `+interventionColumns+` FROM interventions
			 WHERE status = 'paused' AND paused_at < $1`,
			cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()

		interventions = interventions[:0]
		for rows.Next() {
			var i domain.Intervention
			if err := scanIntervention(rows, &i); err != nil {
				return err
			}
			interventions = append(interventions, i)
		}
		return rows.Err()
	})
	return interventions, err
}

func scanIntervention(row pgx.Row, i *domain.Intervention) error {
	var phase int
	err := row.Scan(
		&i.ID, &i.PatternID, &phase, &i.Status, &i.MismatchRetries,
		&i.StartedAt, &i.PausedAt, &i.CompletedAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return err
	}
	i.Phase = domain.Phase(phase)
	return nil
}
