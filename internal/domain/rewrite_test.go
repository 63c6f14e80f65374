package domain

import "testing"

func TestSuccessRateUndefinedAtZeroEncounters(t *testing.T) {
	r := &BeliefRewrite{PredictionCount: 2} // old-belief activations only
	rate, ok := r.SuccessRate()
	if ok {
		t.Fatalf("rate should be undefined with no attributed outcomes, got %v", rate)
	}
}

func TestSuccessRateExact(t *testing.T) {
	r := &BeliefRewrite{PredictionCount: 5, SuccessCount: 4, FailureCount: 1}
	rate, ok := r.SuccessRate()
	if !ok {
		t.Fatal("rate should be defined")
	}
	if rate != 0.8 {
		t.Fatalf("SuccessRate() = %v, want exactly 0.8", rate)
	}
}

func TestRewriteUsable(t *testing.T) {
	if !(&BeliefRewrite{AdaptivenessScore: 0.7}).Usable() {
		t.Fatal("score 0.7 should be usable")
	}
	if (&BeliefRewrite{AdaptivenessScore: 0.69}).Usable() {
		t.Fatal("score 0.69 should not be usable")
	}
}
