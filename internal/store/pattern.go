package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
)

type PatternStore struct {
	db Querier
}

func NewPatternStore(db Querier) *PatternStore {
	return &PatternStore{db: db}
}

const patternColumns = `id, belief_content, domain, trigger_context, recurrence_count,
	severity_score, status, first_detected_at, last_occurrence_at, created_at, updated_at`

func (s *PatternStore) Create(ctx context.Context, p *domain.MaladaptivePattern) error {
	var embedding *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		embedding = &v
	}

	if p.Status == "" {
		p.Status = domain.PatternDetected
	}
	if p.RecurrenceCount < 1 {
		p.RecurrenceCount = 1
	}

	return withRetry(ctx, func() error {
		return s.db.QueryRow(ctx,
			`INSERT INTO patterns (belief_content, domain, trigger_context, recurrence_count,
			        severity_score, status, embedding, first_detected_at, last_occurrence_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, created_at, updated_at`,
			p.BeliefContent, p.Domain, p.TriggerContext, p.RecurrenceCount,
			p.SeverityScore, p.Status, embedding, p.FirstDetectedAt, p.LastOccurrenceAt,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	})
}

func (s *PatternStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MaladaptivePattern, error) {
	p := &domain.MaladaptivePattern{}
	err := withRetry(ctx, func() error {
		return scanPattern(s.db.QueryRow(ctx,
			`SELECT `+patternColumns+` FROM patterns WHERE id = $1`, id), p)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PatternStore) List(ctx context.Context, q domain.PatternQuery) ([]domain.MaladaptivePattern, error) {
	conditions := []string{"TRUE"}
	var args []any

	if q.Domain != nil {
		args = append(args, string(*q.Domain))
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)))
	}
	if q.Status != nil {
		args = append(args, string(*q.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT `+patternColumns+` FROM patterns
		 WHERE %s
		 ORDER BY last_occurrence_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "), len(args))

	var patterns []domain.MaladaptivePattern
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		patterns = patterns[:0]
		for rows.Next() {
			var p domain.MaladaptivePattern
			if err := scanPattern(rows, &p); err != nil {
				return err
			}
			patterns = append(patterns, p)
		}
		return rows.Err()
	})
	return patterns, err
}

func (s *PatternStore) RecordRecurrence(ctx context.Context, id uuid.UUID, count int, severity float64, lastOccurrence time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE patterns
			 SET recurrence_count = GREATEST(recurrence_count, $1),
			     severity_score = $2,
			     last_occurrence_at = GREATEST(last_occurrence_at, $3),
			     updated_at = NOW()
			 WHERE id = $4`,
			count, severity, lastOccurrence, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PatternStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PatternStatus) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx,
			`UPDATE patterns SET status = $1, updated_at = NOW() WHERE id = $2`,
			status, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PatternStore) FindSimilarBeliefs(ctx context.Context, embedding []float32, threshold float32, limit int) ([]domain.PatternWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	var results []domain.PatternWithScore
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx,
			`SELECT `+patternColumns+`, 1 - (embedding <=> $1) AS score
			 FROM patterns
			 WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2
			 ORDER BY score DESC
			 LIMIT $3`,
			vec, threshold, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = results[:0]
		for rows.Next() {
			var ps domain.PatternWithScore
			err := rows.Scan(
				&ps.ID, &ps.BeliefContent, &ps.Domain, &ps.TriggerContext, &ps.RecurrenceCount,
				&ps.SeverityScore, &ps.Status, &ps.FirstDetectedAt, &ps.LastOccurrenceAt,
				&ps.CreatedAt, &ps.UpdatedAt, &ps.Score,
			)
			if err != nil {
				return err
			}
			results = append(results, ps)
		}
		return rows.Err()
	})
	return results, err
}

func scanPattern(row pgx.Row, p *domain.MaladaptivePattern) error {
	return row.Scan(
		&p.ID, &p.BeliefContent, &p.Domain, &p.TriggerContext, &p.RecurrenceCount,
		&p.SeverityScore, &p.Status, &p.FirstDetectedAt, &p.LastOccurrenceAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
