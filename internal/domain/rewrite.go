package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsableAdaptiveness is the score at or above which a rewrite is considered
// a usable replacement belief.
const UsableAdaptiveness = 0.7

// BeliefRewrite is the phase-4 output: a candidate replacement for the
// pattern's old belief. Counters are mutated only by verification tracking
// and maintain successCount + failureCount <= predictionCount.
type BeliefRewrite struct {
	ID                uuid.UUID `json:"id"`
	InterventionID    uuid.UUID `json:"intervention_id"`
	OldBeliefID       uuid.UUID `json:"old_belief_id"`
	NewBeliefContent  string    `json:"new_belief_content"`
	AdaptivenessScore float64   `json:"adaptiveness_score"`
	PredictionCount   int       `json:"prediction_count"`
	SuccessCount      int       `json:"success_count"`
	FailureCount      int       `json:"failure_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SuccessRate returns successCount / (successCount + failureCount). The rate
// is undefined when no outcome has been attributed to the new belief yet, in
// which case ok is false and the value must not be treated as zero.
func (r *BeliefRewrite) SuccessRate() (rate float64, ok bool) {
	denom := r.SuccessCount + r.FailureCount
	if denom == 0 {
		return 0, false
	}
	return float64(r.SuccessCount) / float64(denom), true
}

// Usable reports whether the rewrite clears the adaptiveness bar.
func (r *BeliefRewrite) Usable() bool {
	return r.AdaptivenessScore >= UsableAdaptiveness
}
