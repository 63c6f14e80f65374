package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestRecon(stores domain.Stores) *ReconsolidationService {
	return NewReconsolidationService(stores.Predictions, nil, DefaultConfig(), zap.NewNop())
}

func TestComputeRequiresCoreBelief(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestRecon(stores)

	c := &domain.FiveWindowCapture{
		Senses:     domain.WindowPayload{"visual": "empty chair"},
		Actions:    domain.WindowPayload{"taken": "waited"},
		Cognitions: domain.WindowPayload{"mood_note": "irrelevant key"},
	}

	_, err := svc.Compute(c)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "cognitions" {
		t.Fatalf("got %v, want ValidationError on cognitions", err)
	}
}

func TestComputeRequiresObservedOutcome(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestRecon(stores)

	c := &domain.FiveWindowCapture{
		Senses:     domain.WindowPayload{"visual": "   "},
		Cognitions: domain.WindowPayload{domain.CognitionPrediction: "they will leave"},
	}

	_, err := svc.Compute(c)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "senses" {
		t.Fatalf("got %v, want ValidationError on senses", err)
	}
}

func TestComputeObservedOutcomeExcludesInnerWindows(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestRecon(stores)

	c := &domain.FiveWindowCapture{
		InterventionID: uuid.New(),
		Senses:         domain.WindowPayload{"visual": "she stayed", "auditory": "calm voice"},
		Actions:        domain.WindowPayload{"taken": "kept talking"},
		Emotions:       domain.WindowPayload{"primary": "dread"},
		Impulses:       domain.WindowPayload{"urge": "run"},
		Cognitions:     domain.WindowPayload{domain.CognitionPrediction: "she will walk out"},
	}

	pe, err := svc.Compute(c)
	if err != nil {
		t.Fatal(err)
	}

	// auditory sorts before visual; actions follow senses.
	want := "calm voice she stayed kept talking"
	if pe.ObservedOutcome != want {
		t.Fatalf("observed outcome = %q, want %q", pe.ObservedOutcome, want)
	}
	if pe.CoreBelief != "she will walk out" {
		t.Fatalf("core belief = %q", pe.CoreBelief)
	}
}

func TestComputeMagnitudeFromSimilarity(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestRecon(stores)
	svc.similarity = func(a, b string) float64 { return 0.25 }

	c := &domain.FiveWindowCapture{
		Senses:     domain.WindowPayload{"visual": "anything"},
		Cognitions: domain.WindowPayload{domain.CognitionPrediction: "a belief"},
	}

	pe, err := svc.Compute(c)
	if err != nil {
		t.Fatal(err)
	}
	if pe.ErrorMagnitude != 0.75 {
		t.Fatalf("magnitude = %v, want 0.75", pe.ErrorMagnitude)
	}

	svc.similarity = func(a, b string) float64 { return 1.5 } // misbehaving metric
	pe, err = svc.Compute(c)
	if err != nil {
		t.Fatal(err)
	}
	if pe.ErrorMagnitude != 0 {
		t.Fatalf("magnitude = %v, want clamped to 0", pe.ErrorMagnitude)
	}
}

func TestComputeOpensWindow(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestRecon(stores)
	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	c := &domain.FiveWindowCapture{
		Senses:     domain.WindowPayload{"visual": "anything"},
		Cognitions: domain.WindowPayload{domain.CognitionPrediction: "a belief"},
	}

	pe, err := svc.Compute(c)
	if err != nil {
		t.Fatal(err)
	}
	if !pe.WindowOpenedAt.Equal(fixed) {
		t.Fatalf("window opened at %v, want %v", pe.WindowOpenedAt, fixed)
	}
	if !pe.WindowExpiresAt.Equal(fixed.Add(4 * time.Hour)) {
		t.Fatalf("window expires at %v, want +4h", pe.WindowExpiresAt)
	}
	if !pe.WindowOpen(fixed.Add(3 * time.Hour)) {
		t.Fatal("window should be open before the deadline")
	}
	if pe.WindowOpen(fixed.Add(4*time.Hour + time.Second)) {
		t.Fatal("window must be closed past the deadline")
	}
}

func TestSignificanceThreshold(t *testing.T) {
	pe := &domain.PredictionError{ErrorMagnitude: 0.5}
	if pe.Significant(0.5) {
		t.Fatal("magnitude equal to threshold is not significant")
	}
	pe.ErrorMagnitude = 0.51
	if !pe.Significant(0.5) {
		t.Fatal("magnitude above threshold is significant")
	}
}
