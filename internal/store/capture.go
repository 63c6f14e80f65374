package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CaptureStore struct {
	db Querier
}

func NewCaptureStore(db Querier) *CaptureStore {
	return &CaptureStore{db: db}
}

const captureColumns = `id, intervention_id, senses, actions, emotions, impulses, cognitions,
	context, emotional_intensity, turning_point, preserve_indefinitely,
	confidence, window_confidence, archive_eligible, decayed_at, created_at`

func (s *CaptureStore) Create(ctx context.Context, c *domain.FiveWindowCapture) error {
	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO captures (intervention_id, senses, actions, emotions, impulses, cognitions,
			        context, emotional_intensity, turning_point, preserve_indefinitely, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id, created_at`,
			c.InterventionID, c.Senses, c.Actions, c.Emotions, c.Impulses, c.Cognitions,
			c.Context, c.EmotionalIntensity, c.TurningPoint, c.PreserveIndefinitely, c.Confidence,
		).Scan(&c.ID, &c.CreatedAt)
	})
}

func (s *CaptureStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.FiveWindowCapture, error) {
	c := &domain.FiveWindowCapture{}
	err := withRetry(ctx, func() error {
		return scanCapture(s.db.QueryRow(ctx,
			`SELECT `+captureColumns+` FROM captures WHERE id = $1`, id), c)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CaptureStore) GetByIntervention(ctx context.Context, interventionID uuid.UUID) ([]domain.FiveWindowCapture, error) {
	var captures []domain.FiveWindowCapture
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT `+captureColumns+` FROM captures
			 WHERE intervention_id = $1 ORDER BY created_at ASC`, interventionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		captures = captures[:0]
		for rows.Next() {
			var c domain.FiveWindowCapture
			if err := scanCapture(rows, &c); err != nil {
				return err
			}
			captures = append(captures, c)
		}
		return rows.Err()
	})
	return captures, err
}

func (s *CaptureStore) LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.FiveWindowCapture, error) {
	c := &domain.FiveWindowCapture{}
	err := withRetry(ctx, func() error {
		return scanCapture(s.db.QueryRow(ctx,
			`SELECT `+captureColumns+` FROM captures
			 WHERE intervention_id = $1 ORDER BY created_at DESC LIMIT 1`, interventionID), c)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CaptureStore) LatestByPattern(ctx context.Context, patternID uuid.UUID) (*domain.FiveWindowCapture, error) {
	c := &domain.FiveWindowCapture{}
	err := withRetry(ctx, func() error {
		return scanCapture(s.db.QueryRow(ctx,
			`SELECT `+prefixedCaptureColumns("c")+`
			 FROM captures c
			 JOIN interventions i ON i.id = c.intervention_id
			 WHERE i.pattern_id = $1
			 ORDER BY c.created_at DESC LIMIT 1`, patternID), c)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CaptureStore) ListDecayCandidates(ctx context.Context, cutoff time.Time, afterID uuid.UUID, limit int) ([]domain.FiveWindowCapture, error) {
	if limit <= 0 {
		limit = 100
	}

	var captures []domain.FiveWindowCapture
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT `+captureColumns+` FROM captures
			 WHERE created_at < $1
			   AND NOT turning_point
			   AND NOT preserve_indefinitely
			   AND NOT archive_eligible
			   AND id > $2
			 ORDER BY id ASC
			 LIMIT $3`,
			cutoff, afterID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		captures = captures[:0]
		for rows.Next() {
			var c domain.FiveWindowCapture
			if err := scanCapture(rows, &c); err != nil {
				return err
			}
			captures = append(captures, c)
		}
		return rows.Err()
	})
	return captures, err
}

func (s *CaptureStore) UpdateDecay(ctx context.Context, id uuid.UUID, confidence float64, windows map[domain.Window]float64, archiveEligible bool) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE captures
			 SET confidence = $1, window_confidence = $2, archive_eligible = $3, decayed_at = NOW()
			 WHERE id = $4`,
			confidence, windows, archiveEligible, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanCapture(row pgx.Row, c *domain.FiveWindowCapture) error {
	return row.Scan(
		&c.ID, &c.InterventionID, &c.Senses, &c.Actions, &c.Emotions, &c.Impulses, &c.Cognitions,
		&c.Context, &c.EmotionalIntensity, &c.TurningPoint, &c.PreserveIndefinitely,
		&c.Confidence, &c.WindowConfidence, &c.ArchiveEligible, &c.DecayedAt, &c.CreatedAt,
	)
}

func prefixedCaptureColumns(alias string) string {
	return alias + `.id, ` + alias + `.intervention_id, ` + alias + `.senses, ` + alias + `.actions, ` +
		alias + `.emotions, ` + alias + `.impulses, ` + alias + `.cognitions, ` + alias + `.context, ` +
		alias + `.emotional_intensity, ` + alias + `.turning_point, ` + alias + `.preserve_indefinitely, ` +
		alias + `.confidence, ` + alias + `.window_confidence, ` + alias + `.archive_eligible, ` +
		alias + `.decayed_at, ` + alias + `.created_at`
}
