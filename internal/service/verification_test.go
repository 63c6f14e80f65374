package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/reframe/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newTestVerification(stores domain.Stores) *VerificationService {
	return NewVerificationService(stores.Encounters, stores.Rewrites, DefaultConfig(), zap.NewNop())
}

func TestVerificationBuildRejectsBadActivation(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestVerification(stores)

	_, _, err := svc.Build(EncounterInput{
		BeliefID:        uuid.New(),
		BeliefActivated: "neither",
	})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "belief_activated" {
		t.Fatalf("got %v, want ValidationError on belief_activated", err)
	}
}

func TestVerificationBuildOutcomeAttribution(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestVerification(stores)

	// Old-belief relapse: recorded but not attributed.
	_, outcome, err := svc.Build(EncounterInput{
		BeliefID:          uuid.New(),
		BeliefActivated:   domain.ActivatedOld,
		PredictionCorrect: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != nil {
		t.Fatal("old-belief activation must not attribute an outcome")
	}

	_, outcome, err = svc.Build(EncounterInput{
		BeliefID:          uuid.New(),
		BeliefActivated:   domain.ActivatedNew,
		PredictionCorrect: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || !*outcome {
		t.Fatal("new-belief success must attribute a positive outcome")
	}

	_, outcome, err = svc.Build(EncounterInput{
		BeliefID:          uuid.New(),
		BeliefActivated:   domain.ActivatedNew,
		PredictionCorrect: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || *outcome {
		t.Fatal("new-belief failure must attribute a negative outcome")
	}
}

func TestVerificationBuildDefaultsTriggerTime(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestVerification(stores)

	enc, _, err := svc.Build(EncounterInput{
		BeliefID:        uuid.New(),
		BeliefActivated: domain.ActivatedNew,
	})
	if err != nil {
		t.Fatal(err)
	}
	if enc.TriggerOccurredAt.IsZero() {
		t.Fatal("trigger time not defaulted")
	}
	if time.Since(enc.TriggerOccurredAt) > time.Minute {
		t.Fatalf("defaulted trigger time too old: %v", enc.TriggerOccurredAt)
	}
}

func seedRewrite(t *testing.T, m *mocks, predictions, successes, failures int) *domain.BeliefRewrite {
	t.Helper()
	rw := &domain.BeliefRewrite{
		InterventionID:    uuid.New(),
		OldBeliefID:       uuid.New(),
		NewBeliefContent:  "some outcomes are outside my control",
		AdaptivenessScore: 0.8,
		PredictionCount:   predictions,
		SuccessCount:      successes,
		FailureCount:      failures,
	}
	if err := m.rewrites.Create(context.Background(), rw); err != nil {
		t.Fatal(err)
	}
	return rw
}

func TestSuccessRateUndefinedWithoutOutcomes(t *testing.T) {
	stores, m := newMocks()
	svc := newTestVerification(stores)

	// Two encounters recorded, both old-belief relapses: denominator stays 0.
	rw := seedRewrite(t, m, 2, 0, 0)

	rate, ok, err := svc.SuccessRate(context.Background(), rw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("rate should be undefined, got %v", rate)
	}
}

func TestSuccessRateNotFound(t *testing.T) {
	stores, _ := newMocks()
	svc := newTestVerification(stores)

	if _, _, err := svc.SuccessRate(context.Background(), uuid.New()); !errors.Is(err, ErrRewriteNotFound) {
		t.Fatalf("got %v, want ErrRewriteNotFound", err)
	}
}

func TestShouldFollowUp(t *testing.T) {
	ctx := context.Background()

	t.Run("below minimum encounters", func(t *testing.T) {
		stores, m := newMocks()
		svc := newTestVerification(stores)
		rw := seedRewrite(t, m, 2, 0, 2)
		for i := 0; i < 2; i++ {
			enc, _, _ := svc.Build(EncounterInput{BeliefID: rw.ID, BeliefActivated: domain.ActivatedNew})
			_ = m.encounters.Create(ctx, enc)
		}
		follow, err := svc.ShouldFollowUp(ctx, rw.ID)
		if err != nil {
			t.Fatal(err)
		}
		if follow {
			t.Fatal("two encounters must not trigger follow-up")
		}
	})

	t.Run("enough encounters, rate below target", func(t *testing.T) {
		stores, m := newMocks()
		svc := newTestVerification(stores)
		rw := seedRewrite(t, m, 3, 1, 2)
		for i := 0; i < 3; i++ {
			enc, _, _ := svc.Build(EncounterInput{BeliefID: rw.ID, BeliefActivated: domain.ActivatedNew})
			_ = m.encounters.Create(ctx, enc)
		}
		follow, err := svc.ShouldFollowUp(ctx, rw.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !follow {
			t.Fatal("1/3 success rate must trigger follow-up")
		}
	})

	t.Run("enough encounters, rate at target", func(t *testing.T) {
		stores, m := newMocks()
		svc := newTestVerification(stores)
		rw := seedRewrite(t, m, 4, 3, 1)
		for i := 0; i < 4; i++ {
			enc, _, _ := svc.Build(EncounterInput{BeliefID: rw.ID, BeliefActivated: domain.ActivatedNew})
			_ = m.encounters.Create(ctx, enc)
		}
		follow, err := svc.ShouldFollowUp(ctx, rw.ID)
		if err != nil {
			t.Fatal(err)
		}
		if follow {
			t.Fatal("0.75 success rate meets the 0.70 target")
		}
	})
}

func TestVerificationHistory(t *testing.T) {
	ctx := context.Background()
	stores, m := newMocks()
	svc := newTestVerification(stores)

	rw := seedRewrite(t, m, 5, 3, 1) // one encounter was an old-belief relapse
	for i := 0; i < 5; i++ {
		enc, _, _ := svc.Build(EncounterInput{BeliefID: rw.ID, BeliefActivated: domain.ActivatedNew})
		_ = m.encounters.Create(ctx, enc)
	}

	h, err := svc.History(ctx, rw.ID)
	if err != nil {
		t.Fatal(err)
	}
	if h.TotalEncounters != 5 {
		t.Fatalf("total encounters = %d, want 5", h.TotalEncounters)
	}
	if h.SuccessCount != 3 || h.FailureCount != 1 {
		t.Fatalf("counters = %d/%d, want 3/1", h.SuccessCount, h.FailureCount)
	}
	if h.SuccessRate == nil || *h.SuccessRate != 0.75 {
		t.Fatalf("success rate = %v, want 0.75", h.SuccessRate)
	}
}
