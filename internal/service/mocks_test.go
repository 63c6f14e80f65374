package service

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
)

// mocks bundles map-backed store implementations sharing one state, plus a
// unit of work that runs transactions against the same maps.
type mocks struct {
	captures      *mockCaptureStore
	patterns      *mockPatternStore
	interventions *mockInterventionStore
	predictions   *mockPredictionStore
	rewrites      *mockRewriteStore
	encounters    *mockEncounterStore
	graph         *mockGraphStore
	uow           *mockUnitOfWork
}

func newMocks() (domain.Stores, *mocks) {
	m := &mocks{
		patterns:      &mockPatternStore{patterns: make(map[uuid.UUID]*domain.MaladaptivePattern)},
		interventions: &mockInterventionStore{interventions: make(map[uuid.UUID]*domain.Intervention)},
		predictions:   &mockPredictionStore{},
		rewrites:      &mockRewriteStore{rewrites: make(map[uuid.UUID]*domain.BeliefRewrite)},
		encounters:    &mockEncounterStore{},
		graph:         &mockGraphStore{},
	}
	m.captures = &mockCaptureStore{
		captures:      make(map[uuid.UUID]*domain.FiveWindowCapture),
		interventions: m.interventions,
	}

	stores := domain.Stores{
		Captures:      m.captures,
		Patterns:      m.patterns,
		Interventions: m.interventions,
		Predictions:   m.predictions,
		Rewrites:      m.rewrites,
		Encounters:    m.encounters,
		Graph:         m.graph,
	}
	m.uow = &mockUnitOfWork{stores: stores}
	return stores, m
}

type mockUnitOfWork struct {
	stores domain.Stores
}

func (u *mockUnitOfWork) InTx(_ context.Context, fn func(domain.Stores) error) error {
	return fn(u.stores)
}

// mockCaptureStore implements domain.CaptureStore.
type mockCaptureStore struct {
	captures      map[uuid.UUID]*domain.FiveWindowCapture
	interventions *mockInterventionStore
}

func (m *mockCaptureStore) Create(_ context.Context, c *domain.FiveWindowCapture) error {
	c.ID = uuid.New()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	stored := *c
	m.captures[c.ID] = &stored
	return nil
}

func (m *mockCaptureStore) GetByID(_ context.Context, id uuid.UUID) (*domain.FiveWindowCapture, error) {
	c, ok := m.captures[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCaptureStore) GetByIntervention(_ context.Context, interventionID uuid.UUID) ([]domain.FiveWindowCapture, error) {
	var out []domain.FiveWindowCapture
	for _, c := range m.captures {
		if c.InterventionID == interventionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCaptureStore) LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*domain.FiveWindowCapture, error) {
	all, _ := m.GetByIntervention(ctx, interventionID)
	if len(all) == 0 {
		return nil, store.ErrNotFound
	}
	latest := all[len(all)-1]
	return &latest, nil
}

func (m *mockCaptureStore) LatestByPattern(_ context.Context, patternID uuid.UUID) (*domain.FiveWindowCapture, error) {
	var latest *domain.FiveWindowCapture
	for _, c := range m.captures {
		iv, ok := m.interventions.interventions[c.InterventionID]
		if !ok || iv.PatternID != patternID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (m *mockCaptureStore) ListDecayCandidates(_ context.Context, cutoff time.Time, afterID uuid.UUID, limit int) ([]domain.FiveWindowCapture, error) {
	var out []domain.FiveWindowCapture
	for _, c := range m.captures {
		if !c.CreatedAt.Before(cutoff) || c.TurningPoint || c.PreserveIndefinitely || c.ArchiveEligible {
			continue
		}
		if bytes.Compare(c.ID[:], afterID[:]) <= 0 {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockCaptureStore) UpdateDecay(_ context.Context, id uuid.UUID, confidence float64, windows map[domain.Window]float64, archiveEligible bool) error {
	c, ok := m.captures[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	c.Confidence = confidence
	c.WindowConfidence = windows
	c.ArchiveEligible = archiveEligible
	c.DecayedAt = &now
	return nil
}

// mockPatternStore implements domain.PatternStore.
type mockPatternStore struct {
	patterns map[uuid.UUID]*domain.MaladaptivePattern
}

func (m *mockPatternStore) Create(_ context.Context, p *domain.MaladaptivePattern) error {
	p.ID = uuid.New()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = domain.PatternDetected
	}
	stored := *p
	m.patterns[p.ID] = &stored
	return nil
}

func (m *mockPatternStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MaladaptivePattern, error) {
	p, ok := m.patterns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *mockPatternStore) List(_ context.Context, q domain.PatternQuery) ([]domain.MaladaptivePattern, error) {
	var out []domain.MaladaptivePattern
	for _, p := range m.patterns {
		if q.Domain != nil && p.Domain != *q.Domain {
			continue
		}
		if q.Status != nil && p.Status != *q.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastOccurrenceAt.After(out[j].LastOccurrenceAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *mockPatternStore) RecordRecurrence(_ context.Context, id uuid.UUID, count int, severity float64, lastOccurrence time.Time) error {
	p, ok := m.patterns[id]
	if !ok {
		return store.ErrNotFound
	}
	if count > p.RecurrenceCount {
		p.RecurrenceCount = count
	}
	p.SeverityScore = severity
	if lastOccurrence.After(p.LastOccurrenceAt) {
		p.LastOccurrenceAt = lastOccurrence
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *mockPatternStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PatternStatus) error {
	p, ok := m.patterns[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

func (m *mockPatternStore) FindSimilarBeliefs(_ context.Context, embedding []float32, threshold float32, limit int) ([]domain.PatternWithScore, error) {
	var out []domain.PatternWithScore
	for _, p := range m.patterns {
		if len(p.Embedding) == 0 {
			continue
		}
		score := float32(Cosine(embedding, p.Embedding))
		if score < threshold {
			continue
		}
		out = append(out, domain.PatternWithScore{MaladaptivePattern: *p, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mockInterventionStore implements domain.InterventionStore with the same
// compare-and-set semantics as the SQL store.
type mockInterventionStore struct {
	interventions map[uuid.UUID]*domain.Intervention
}

func (m *mockInterventionStore) Create(_ context.Context, i *domain.Intervention) error {
	i.ID = uuid.New()
	now := time.Now()
	i.CreatedAt = now
	i.UpdatedAt = now
	if i.Phase == 0 {
		i.Phase = domain.PhaseInterrupt
	}
	if i.Status == "" {
		i.Status = domain.InterventionActive
	}
	stored := *i
	m.interventions[i.ID] = &stored
	return nil
}

func (m *mockInterventionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Intervention, error) {
	iv, ok := m.interventions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *iv
	return &out, nil
}

func (m *mockInterventionStore) GetActiveByPattern(_ context.Context, patternID uuid.UUID) (*domain.Intervention, error) {
	for _, iv := range m.interventions {
		if iv.PatternID == patternID && !iv.Status.Terminal() {
			out := *iv
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockInterventionStore) AdvancePhase(_ context.Context, id uuid.UUID, from, to domain.Phase) error {
	iv, ok := m.interventions[id]
	if !ok || iv.Phase != from || iv.Status != domain.InterventionActive {
		return store.ErrConflict
	}
	iv.Phase = to
	iv.UpdatedAt = time.Now()
	return nil
}

func (m *mockInterventionStore) MarkStarted(_ context.Context, id uuid.UUID, at time.Time) error {
	iv, ok := m.interventions[id]
	if !ok || iv.StartedAt != nil {
		return store.ErrConflict
	}
	iv.StartedAt = &at
	return nil
}

func (m *mockInterventionStore) Pause(_ context.Context, id uuid.UUID, at time.Time) error {
	iv, ok := m.interventions[id]
	if !ok || iv.Status != domain.InterventionActive {
		return store.ErrConflict
	}
	iv.Status = domain.InterventionPaused
	iv.PausedAt = &at
	return nil
}

func (m *mockInterventionStore) Resume(_ context.Context, id uuid.UUID) error {
	iv, ok := m.interventions[id]
	if !ok || iv.Status != domain.InterventionPaused {
		return store.ErrConflict
	}
	iv.Status = domain.InterventionActive
	iv.PausedAt = nil
	return nil
}

func (m *mockInterventionStore) Complete(_ context.Context, id uuid.UUID, at time.Time) error {
	iv, ok := m.interventions[id]
	if !ok || iv.Status != domain.InterventionActive {
		return store.ErrConflict
	}
	iv.Status = domain.InterventionCompleted
	iv.CompletedAt = &at
	return nil
}

func (m *mockInterventionStore) Abandon(_ context.Context, id uuid.UUID, at time.Time) error {
	iv, ok := m.interventions[id]
	if !ok || iv.Status.Terminal() {
		return store.ErrConflict
	}
	iv.Status = domain.InterventionAbandoned
	iv.CompletedAt = &at
	return nil
}

func (m *mockInterventionStore) IncrementMismatchRetries(_ context.Context, id uuid.UUID) (int, error) {
	iv, ok := m.interventions[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	iv.MismatchRetries++
	return iv.MismatchRetries, nil
}

func (m *mockInterventionStore) ListPausedBefore(_ context.Context, cutoff time.Time) ([]domain.Intervention, error) {
	var out []domain.Intervention
	for _, iv := range m.interventions {
		if iv.Status == domain.InterventionPaused && iv.PausedAt != nil && iv.PausedAt.Before(cutoff) {
			out = append(out, *iv)
		}
	}
	return out, nil
}

// mockPredictionStore implements domain.PredictionStore as an append-only log.
type mockPredictionStore struct {
	predictions []*domain.PredictionError
}

func (m *mockPredictionStore) Create(_ context.Context, p *domain.PredictionError) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	stored := *p
	m.predictions = append(m.predictions, &stored)
	return nil
}

func (m *mockPredictionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.PredictionError, error) {
	for _, p := range m.predictions {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockPredictionStore) LatestByIntervention(_ context.Context, interventionID uuid.UUID) (*domain.PredictionError, error) {
	for i := len(m.predictions) - 1; i >= 0; i-- {
		if m.predictions[i].InterventionID == interventionID {
			out := *m.predictions[i]
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

// mockRewriteStore implements domain.RewriteStore.
type mockRewriteStore struct {
	rewrites map[uuid.UUID]*domain.BeliefRewrite
	order    []uuid.UUID
}

func (m *mockRewriteStore) Create(_ context.Context, r *domain.BeliefRewrite) error {
	r.ID = uuid.New()
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	stored := *r
	m.rewrites[r.ID] = &stored
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockRewriteStore) GetByID(_ context.Context, id uuid.UUID) (*domain.BeliefRewrite, error) {
	r, ok := m.rewrites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *mockRewriteStore) GetByIntervention(_ context.Context, interventionID uuid.UUID) (*domain.BeliefRewrite, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		if r := m.rewrites[m.order[i]]; r.InterventionID == interventionID {
			out := *r
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockRewriteStore) RecordPrediction(_ context.Context, id uuid.UUID, outcome *bool) error {
	r, ok := m.rewrites[id]
	if !ok {
		return store.ErrNotFound
	}
	r.PredictionCount++
	if outcome != nil {
		if *outcome {
			r.SuccessCount++
		} else {
			r.FailureCount++
		}
	}
	r.UpdatedAt = time.Now()
	return nil
}

// mockEncounterStore implements domain.EncounterStore as an append-only log.
type mockEncounterStore struct {
	encounters []*domain.VerificationEncounter
}

func (m *mockEncounterStore) Create(_ context.Context, e *domain.VerificationEncounter) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	stored := *e
	m.encounters = append(m.encounters, &stored)
	return nil
}

func (m *mockEncounterStore) ListByBelief(_ context.Context, beliefID uuid.UUID) ([]domain.VerificationEncounter, error) {
	var out []domain.VerificationEncounter
	for _, e := range m.encounters {
		if e.BeliefID == beliefID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEncounterStore) CountByBelief(ctx context.Context, beliefID uuid.UUID) (int, error) {
	all, _ := m.ListByBelief(ctx, beliefID)
	return len(all), nil
}

// mockGraphStore implements domain.GraphStore.
type mockGraphStore struct {
	nodes []*domain.BeliefNode
	edges []*domain.BeliefEdge
}

func (m *mockGraphStore) CreateNode(_ context.Context, n *domain.BeliefNode) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	stored := *n
	m.nodes = append(m.nodes, &stored)
	return nil
}

func (m *mockGraphStore) CreateEdge(_ context.Context, e *domain.BeliefEdge) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	stored := *e
	m.edges = append(m.edges, &stored)
	return nil
}

func (m *mockGraphStore) GetNeighbors(_ context.Context, nodeID uuid.UUID) ([]domain.BeliefEdge, error) {
	var out []domain.BeliefEdge
	for _, e := range m.edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			out = append(out, *e)
		}
	}
	return out, nil
}
