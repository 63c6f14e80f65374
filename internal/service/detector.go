package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/Harshitk-cp/reframe/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrPatternNotFound = errors.New("pattern not found")

// CrisisIntensity is the emotional intensity at or above which an
// interruption is deferred rather than started.
const CrisisIntensity = 9.0

const (
	severityDensityWeight   = 0.6
	severityIntensityWeight = 0.4
)

// DetectorService groups capture history by belief content and emits
// maladaptive patterns once recurrence crosses the threshold. Detection is
// idempotent: recomputing over the same capture set yields the same
// recurrence count.
type DetectorService struct {
	patterns domain.PatternStore
	matcher  domain.BeliefMatcher
	embedder domain.EmbeddingClient
	logger   *zap.Logger

	recurrenceThreshold int
	recurrenceWindow    time.Duration
	vectorThreshold     float32
}

func NewDetectorService(ps domain.PatternStore, matcher domain.BeliefMatcher, cfg Config, logger *zap.Logger) *DetectorService {
	return &DetectorService{
		patterns:            ps,
		matcher:             matcher,
		logger:              logger,
		recurrenceThreshold: cfg.RecurrenceThreshold,
		recurrenceWindow:    cfg.RecurrenceWindow,
	}
}

// UseEmbeddings switches existing-pattern lookup from the linear list-and-match
// scan to the store's vector index. New patterns store their belief embedding
// so later detections can find them the same way.
func (s *DetectorService) UseEmbeddings(client domain.EmbeddingClient, threshold float64) {
	s.embedder = client
	s.vectorThreshold = float32(threshold)
}

// DetectInput carries the capture history and the candidate belief to test.
type DetectInput struct {
	History         []domain.FiveWindowCapture
	CandidateBelief string
	Domain          domain.PatternDomain
	TriggerContext  map[string]string
	AsOf            time.Time
}

// Detect groups captures matching the candidate belief within the rolling
// recurrence window. Returns nil (no error) when the group is below the
// threshold; otherwise creates or updates the matching pattern.
func (s *DetectorService) Detect(ctx context.Context, in DetectInput) (*domain.MaladaptivePattern, error) {
	if in.CandidateBelief == "" {
		return nil, domain.Validationf("candidate_belief", "must not be empty")
	}
	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	windowStart := asOf.Add(-s.recurrenceWindow)

	var group []domain.FiveWindowCapture
	for _, c := range in.History {
		if c.CreatedAt.Before(windowStart) || c.CreatedAt.After(asOf) {
			continue
		}
		belief := c.CoreBelief()
		if belief == "" {
			continue
		}
		matched, err := s.matcher.Match(ctx, belief, in.CandidateBelief)
		if err != nil {
			return nil, err
		}
		if matched {
			group = append(group, c)
		}
	}

	if len(group) < s.recurrenceThreshold {
		return nil, nil
	}

	severity := Severity(len(group), s.recurrenceWindow, avgIntensity(group))
	lastOccurrence := group[0].CreatedAt
	firstOccurrence := group[0].CreatedAt
	for _, c := range group[1:] {
		if c.CreatedAt.After(lastOccurrence) {
			lastOccurrence = c.CreatedAt
		}
		if c.CreatedAt.Before(firstOccurrence) {
			firstOccurrence = c.CreatedAt
		}
	}

	var embedding []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, in.CandidateBelief)
		if err != nil {
			return nil, err
		}
		embedding = vec
	}

	existing, err := s.findExisting(ctx, in.CandidateBelief, embedding)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.patterns.RecordRecurrence(ctx, existing.ID, len(group), severity, lastOccurrence); err != nil {
			return nil, err
		}
		return s.patterns.GetByID(ctx, existing.ID)
	}

	pattern := &domain.MaladaptivePattern{
		BeliefContent:    in.CandidateBelief,
		Domain:           in.Domain,
		TriggerContext:   in.TriggerContext,
		RecurrenceCount:  len(group),
		SeverityScore:    severity,
		Status:           domain.PatternDetected,
		Embedding:        embedding,
		FirstDetectedAt:  firstOccurrence,
		LastOccurrenceAt: lastOccurrence,
	}
	if pattern.Domain == "" {
		pattern.Domain = domain.DomainOther
	}
	if err := s.patterns.Create(ctx, pattern); err != nil {
		return nil, err
	}

	s.logger.Info("pattern detected",
		zap.String("pattern_id", pattern.ID.String()),
		zap.Int("recurrence_count", pattern.RecurrenceCount),
		zap.Float64("severity", pattern.SeverityScore))

	return pattern, nil
}

// findExisting looks up a pattern already tracking this belief. With a vector
// available the store's index answers directly; otherwise every known pattern
// is matched in turn.
func (s *DetectorService) findExisting(ctx context.Context, belief string, embedding []float32) (*domain.MaladaptivePattern, error) {
	if len(embedding) > 0 {
		hits, err := s.patterns.FindSimilarBeliefs(ctx, embedding, s.vectorThreshold, 1)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			return nil, nil
		}
		return &hits[0].MaladaptivePattern, nil
	}

	candidates, err := s.patterns.List(ctx, domain.PatternQuery{})
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		matched, err := s.matcher.Match(ctx, candidates[i].BeliefContent, belief)
		if err != nil {
			return nil, err
		}
		if matched {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// IsInterventionAppropriate refuses (false, not an error) when the most
// recent capture signals crisis-level intensity, or when the pattern already
// has an intervention in flight.
func (s *DetectorService) IsInterventionAppropriate(pattern *domain.MaladaptivePattern, latest *domain.FiveWindowCapture) bool {
	if latest != nil && latest.EmotionalIntensity >= CrisisIntensity {
		return false
	}
	return pattern.Status != domain.PatternActive
}

func (s *DetectorService) GetPattern(ctx context.Context, id uuid.UUID) (*domain.MaladaptivePattern, error) {
	p, err := s.patterns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *DetectorService) ListPatterns(ctx context.Context, q domain.PatternQuery) ([]domain.MaladaptivePattern, error) {
	return s.patterns.List(ctx, q)
}

// Severity combines recurrence density with average emotional intensity,
// normalized to [0,1]. Density dominates; intensity breaks ties.
func Severity(count int, window time.Duration, avgIntensity float64) float64 {
	windowDays := window.Hours() / 24
	if windowDays <= 0 {
		windowDays = 1
	}
	density := float64(count) / windowDays
	if density > 1 {
		density = 1
	}
	return clamp01(severityDensityWeight*density + severityIntensityWeight*(avgIntensity/10))
}

func avgIntensity(captures []domain.FiveWindowCapture) float64 {
	if len(captures) == 0 {
		return 0
	}
	var sum float64
	for _, c := range captures {
		sum += c.EmotionalIntensity
	}
	return sum / float64(len(captures))
}
