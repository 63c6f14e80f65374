package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type CaptureStore interface {
	Create(ctx context.Context, c *FiveWindowCapture) error
	GetByID(ctx context.Context, id uuid.UUID) (*FiveWindowCapture, error)
	GetByIntervention(ctx context.Context, interventionID uuid.UUID) ([]FiveWindowCapture, error)
	LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*FiveWindowCapture, error)
	LatestByPattern(ctx context.Context, patternID uuid.UUID) (*FiveWindowCapture, error)
	// ListDecayCandidates pages through non-exempt captures created before
	// cutoff, ordered by id, starting after afterID. Keyset pagination keeps
	// the scan lazy and restartable.
	ListDecayCandidates(ctx context.Context, cutoff time.Time, afterID uuid.UUID, limit int) ([]FiveWindowCapture, error)
	UpdateDecay(ctx context.Context, id uuid.UUID, confidence float64, windows map[Window]float64, archiveEligible bool) error
}

type PatternStore interface {
	Create(ctx context.Context, p *MaladaptivePattern) error
	GetByID(ctx context.Context, id uuid.UUID) (*MaladaptivePattern, error)
	List(ctx context.Context, q PatternQuery) ([]MaladaptivePattern, error)
	// RecordRecurrence bumps recurrence state. The count never decreases even
	// if a smaller group is recomputed, keeping detection idempotent.
	RecordRecurrence(ctx context.Context, id uuid.UUID, count int, severity float64, lastOccurrence time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status PatternStatus) error
	FindSimilarBeliefs(ctx context.Context, embedding []float32, threshold float32, limit int) ([]PatternWithScore, error)
}

type InterventionStore interface {
	Create(ctx context.Context, i *Intervention) error
	GetByID(ctx context.Context, id uuid.UUID) (*Intervention, error)
	GetActiveByPattern(ctx context.Context, patternID uuid.UUID) (*Intervention, error)
	// AdvancePhase commits from → to with a compare-and-set on the current
	// phase. A concurrent transition surfaces as a conflict, never a
	// silent overwrite.
	AdvancePhase(ctx context.Context, id uuid.UUID, from, to Phase) error
	MarkStarted(ctx context.Context, id uuid.UUID, at time.Time) error
	Pause(ctx context.Context, id uuid.UUID, at time.Time) error
	Resume(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, at time.Time) error
	Abandon(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementMismatchRetries(ctx context.Context, id uuid.UUID) (int, error)
	ListPausedBefore(ctx context.Context, cutoff time.Time) ([]Intervention, error)
}

type PredictionStore interface {
	Create(ctx context.Context, p *PredictionError) error
	GetByID(ctx context.Context, id uuid.UUID) (*PredictionError, error)
	LatestByIntervention(ctx context.Context, interventionID uuid.UUID) (*PredictionError, error)
}

type RewriteStore interface {
	Create(ctx context.Context, r *BeliefRewrite) error
	GetByID(ctx context.Context, id uuid.UUID) (*BeliefRewrite, error)
	GetByIntervention(ctx context.Context, interventionID uuid.UUID) (*BeliefRewrite, error)
	// RecordPrediction bumps predictionCount, and successCount or
	// failureCount when outcome is non-nil, in one atomic update.
	RecordPrediction(ctx context.Context, id uuid.UUID, outcome *bool) error
}

type EncounterStore interface {
	Create(ctx context.Context, e *VerificationEncounter) error
	ListByBelief(ctx context.Context, beliefID uuid.UUID) ([]VerificationEncounter, error)
	CountByBelief(ctx context.Context, beliefID uuid.UUID) (int, error)
}

// GraphStore is the long-term belief network for resolved patterns.
type GraphStore interface {
	CreateNode(ctx context.Context, n *BeliefNode) error
	CreateEdge(ctx context.Context, e *BeliefEdge) error
	GetNeighbors(ctx context.Context, nodeID uuid.UUID) ([]BeliefEdge, error)
}

// Stores bundles every store handle. The orchestrator receives one bundle
// instead of reaching for globals, so parallel test instances never share
// mutable state.
type Stores struct {
	Captures      CaptureStore
	Patterns      PatternStore
	Interventions InterventionStore
	Predictions   PredictionStore
	Rewrites      RewriteStore
	Encounters    EncounterStore
	Graph         GraphStore
}

// UnitOfWork runs fn against transaction-bound stores. Either every write in
// fn commits or none do; phase transitions ride on this so no entity is left
// created-but-unlinked.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BeliefMatcher decides whether two belief statements express the same
// belief. The metric is deliberately pluggable; near-match quality is an
// open question and no caller may depend on a specific algorithm.
type BeliefMatcher interface {
	Match(ctx context.Context, a, b string) (bool, error)
}
