package service

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestDetector(stores domain.Stores) *DetectorService {
	return NewDetectorService(stores.Patterns, NewTokenMatcher(), DefaultConfig(), zap.NewNop())
}

func beliefCapture(belief string, age time.Duration, intensity float64) domain.FiveWindowCapture {
	return domain.FiveWindowCapture{
		ID:                 uuid.New(),
		Cognitions:         domain.WindowPayload{domain.CognitionPrediction: belief},
		EmotionalIntensity: intensity,
		CreatedAt:          time.Now().Add(-age),
	}
}

func TestDetectTriggersAtThreshold(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)

	history := []domain.FiveWindowCapture{
		beliefCapture("nobody respects me", 6*24*time.Hour, 7),
		beliefCapture("nobody respects me", 3*24*time.Hour, 6),
		beliefCapture("nobody respects me", 24*time.Hour, 8),
	}

	pattern, err := svc.Detect(context.Background(), DetectInput{
		History:         history,
		CandidateBelief: "nobody respects me",
		Domain:          domain.DomainWork,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pattern == nil {
		t.Fatal("three matching captures in seven days must detect a pattern")
	}
	if pattern.RecurrenceCount != 3 {
		t.Fatalf("recurrence count = %d, want 3", pattern.RecurrenceCount)
	}
	if pattern.Status != domain.PatternDetected {
		t.Fatalf("new pattern status = %s, want detected", pattern.Status)
	}
	if pattern.SeverityScore <= 0 || pattern.SeverityScore > 1 {
		t.Fatalf("severity %v out of (0,1]", pattern.SeverityScore)
	}
}

func TestDetectBelowThreshold(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)

	history := []domain.FiveWindowCapture{
		beliefCapture("nobody respects me", 3*24*time.Hour, 7),
		beliefCapture("nobody respects me", 24*time.Hour, 6),
	}

	pattern, err := svc.Detect(context.Background(), DetectInput{
		History:         history,
		CandidateBelief: "nobody respects me",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pattern != nil {
		t.Fatal("two matching captures must not detect a pattern")
	}
}

func TestDetectIgnoresCapturesOutsideWindow(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)

	history := []domain.FiveWindowCapture{
		beliefCapture("nobody respects me", 10*24*time.Hour, 7), // outside 7d window
		beliefCapture("nobody respects me", 3*24*time.Hour, 6),
		beliefCapture("nobody respects me", 24*time.Hour, 8),
	}

	pattern, err := svc.Detect(context.Background(), DetectInput{
		History:         history,
		CandidateBelief: "nobody respects me",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pattern != nil {
		t.Fatal("stale capture must not count toward the rolling window")
	}
}

func TestDetectIdempotentRecount(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)

	history := []domain.FiveWindowCapture{
		beliefCapture("nobody respects me", 6*24*time.Hour, 7),
		beliefCapture("nobody respects me", 3*24*time.Hour, 6),
		beliefCapture("nobody respects me", 24*time.Hour, 8),
	}
	in := DetectInput{History: history, CandidateBelief: "nobody respects me"}

	first, err := svc.Detect(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Detect(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Fatal("re-detection must update the existing pattern, not create a twin")
	}
	if second.RecurrenceCount != first.RecurrenceCount {
		t.Fatalf("recount changed recurrence: %d -> %d", first.RecurrenceCount, second.RecurrenceCount)
	}

	all, _ := stores.Patterns.List(context.Background(), domain.PatternQuery{})
	if len(all) != 1 {
		t.Fatalf("pattern count = %d, want 1", len(all))
	}
}

type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return vec, nil
}

func TestDetectStoresBeliefEmbedding(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)
	svc.UseEmbeddings(&stubEmbedder{vectors: map[string][]float32{
		"nobody respects me": {1, 0, 0},
	}}, 0.8)

	history := []domain.FiveWindowCapture{
		beliefCapture("nobody respects me", 6*24*time.Hour, 7),
		beliefCapture("nobody respects me", 3*24*time.Hour, 6),
		beliefCapture("nobody respects me", 24*time.Hour, 8),
	}

	pattern, err := svc.Detect(context.Background(), DetectInput{
		History:         history,
		CandidateBelief: "nobody respects me",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pattern.Embedding, []float32{1, 0, 0}) {
		t.Fatalf("pattern embedding = %v, want the candidate belief vector", pattern.Embedding)
	}
}

func TestDetectMatchesExistingByVector(t *testing.T) {
	stores, m := newMocks()
	svc := newTestDetector(stores)
	// The two phrasings share almost no tokens, so only the vector index can
	// link them.
	svc.UseEmbeddings(&stubEmbedder{vectors: map[string][]float32{
		"nobody respects me":      {1, 0, 0},
		"no one ever respects me": {0.9, 0.1, 0},
	}}, 0.8)

	detect := func(belief string) *domain.MaladaptivePattern {
		t.Helper()
		history := []domain.FiveWindowCapture{
			beliefCapture(belief, 6*24*time.Hour, 7),
			beliefCapture(belief, 3*24*time.Hour, 6),
			beliefCapture(belief, 24*time.Hour, 8),
		}
		p, err := svc.Detect(context.Background(), DetectInput{History: history, CandidateBelief: belief})
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	first := detect("nobody respects me")
	second := detect("no one ever respects me")

	if second.ID != first.ID {
		t.Fatal("a near-identical vector must resolve to the existing pattern")
	}
	all, _ := stores.Patterns.List(context.Background(), domain.PatternQuery{})
	if len(all) != 1 {
		t.Fatalf("pattern count = %d, want 1", len(all))
	}

	// Same vectors below the similarity bar: a fresh pattern.
	svc.UseEmbeddings(&stubEmbedder{vectors: map[string][]float32{
		"I will be fired": {0, 0, 1},
	}}, 0.8)
	third := detect("I will be fired")
	if third.ID == first.ID {
		t.Fatal("an orthogonal vector must not collapse into the existing pattern")
	}
	if _, ok := m.patterns.patterns[third.ID]; !ok {
		t.Fatal("new pattern not persisted")
	}
}

func TestIsInterventionAppropriate(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestDetector(stores)

	pattern := &domain.MaladaptivePattern{Status: domain.PatternDetected}
	calm := beliefCapture("nobody respects me", time.Hour, 7)
	crisis := beliefCapture("nobody respects me", time.Hour, 9.0)

	if !svc.IsInterventionAppropriate(pattern, &calm) {
		t.Fatal("detected pattern with calm capture should allow intervention")
	}
	if svc.IsInterventionAppropriate(pattern, &crisis) {
		t.Fatal("crisis-level intensity must defer intervention")
	}

	active := &domain.MaladaptivePattern{Status: domain.PatternActive}
	if svc.IsInterventionAppropriate(active, &calm) {
		t.Fatal("pattern with a run in flight must not start another")
	}
}

func TestSeverityBounds(t *testing.T) {
	window := 7 * 24 * time.Hour
	low := Severity(3, window, 2)
	high := Severity(50, window, 10)

	if low <= 0 || low > 1 || high <= 0 || high > 1 {
		t.Fatalf("severity out of bounds: low=%v high=%v", low, high)
	}
	if high <= low {
		t.Fatal("denser, more intense patterns must score higher")
	}
}
