package domain

import (
	"time"

	"github.com/google/uuid"
)

// BeliefActivation records which belief fired during a post-rewrite trigger.
type BeliefActivation string

const (
	ActivatedOld BeliefActivation = "old"
	ActivatedNew BeliefActivation = "new"
)

func ValidBeliefActivation(a string) bool {
	switch BeliefActivation(a) {
	case ActivatedOld, ActivatedNew:
		return true
	}
	return false
}

// VerificationEncounter is one post-rewrite trigger observation. Immutable
// once created; the per-belief log is append-only.
type VerificationEncounter struct {
	ID                uuid.UUID        `json:"id"`
	BeliefID          uuid.UUID        `json:"belief_id"`
	InterventionID    uuid.UUID        `json:"intervention_id"`
	TriggerOccurredAt time.Time        `json:"trigger_occurred_at"`
	PredictionContent string           `json:"prediction_content"`
	ObservedOutcome   string           `json:"observed_outcome"`
	PredictionCorrect bool             `json:"prediction_correct"`
	BeliefActivated   BeliefActivation `json:"belief_activated"`
	CreatedAt         time.Time        `json:"created_at"`
}

// VerificationHistory summarizes the encounter log for one belief.
type VerificationHistory struct {
	BeliefID        uuid.UUID `json:"belief_id"`
	TotalEncounters int       `json:"total_encounters"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	SuccessRate     *float64  `json:"success_rate,omitempty"`
}
