package domain

import (
	"time"

	"github.com/google/uuid"
)

// PredictionError is the quantified mismatch between a core belief and the
// sensed outcome, computed at phase 3. WindowExpiresAt is fixed at creation
// and never extended; an expired window is reopened by replaying phase 2.
type PredictionError struct {
	ID              uuid.UUID `json:"id"`
	InterventionID  uuid.UUID `json:"intervention_id"`
	CoreBelief      string    `json:"core_belief"`
	ObservedOutcome string    `json:"observed_outcome"`
	ErrorMagnitude  float64   `json:"error_magnitude"`
	WindowOpenedAt  time.Time `json:"window_opened_at"`
	WindowExpiresAt time.Time `json:"window_expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// WindowOpen reports whether the reconsolidation window is still open at t.
func (p *PredictionError) WindowOpen(t time.Time) bool {
	return t.Before(p.WindowExpiresAt)
}

// Significant reports whether the mismatch clears the given threshold.
func (p *PredictionError) Significant(threshold float64) bool {
	return p.ErrorMagnitude > threshold
}
