package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is one of the five intervention phases.
type Phase int

const (
	PhaseInterrupt Phase = iota + 1
	PhaseCapture
	PhaseMismatch
	PhaseRewrite
	PhaseVerification
)

func (p Phase) String() string {
	switch p {
	case PhaseInterrupt:
		return "interrupt"
	case PhaseCapture:
		return "capture"
	case PhaseMismatch:
		return "mismatch"
	case PhaseRewrite:
		return "rewrite"
	case PhaseVerification:
		return "verification"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func ValidPhase(p int) bool {
	return p >= int(PhaseInterrupt) && p <= int(PhaseVerification)
}

// validPhaseSteps is the transition table: each phase advances to its
// successor, plus the rewrite → capture replay edge taken when the
// reconsolidation window expires before a rewrite lands.
var validPhaseSteps = map[Phase][]Phase{
	PhaseInterrupt: {PhaseCapture},
	PhaseCapture:   {PhaseMismatch},
	PhaseMismatch:  {PhaseRewrite},
	PhaseRewrite:   {PhaseVerification, PhaseCapture},
}

// ValidPhaseStep reports whether from → to is a legal transition.
func ValidPhaseStep(from, to Phase) bool {
	for _, next := range validPhaseSteps[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PausablePhase reports whether user disengagement may pause the intervention
// at this phase. Phases 2 through 4 only.
func PausablePhase(p Phase) bool {
	return p >= PhaseCapture && p <= PhaseRewrite
}

// InterventionStatus is the lifecycle state of one intervention run.
type InterventionStatus string

const (
	InterventionActive    InterventionStatus = "active"
	InterventionPaused    InterventionStatus = "paused"
	InterventionCompleted InterventionStatus = "completed"
	InterventionAbandoned InterventionStatus = "abandoned"
)

func ValidInterventionStatus(s string) bool {
	switch InterventionStatus(s) {
	case InterventionActive, InterventionPaused, InterventionCompleted, InterventionAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s InterventionStatus) Terminal() bool {
	return s == InterventionCompleted || s == InterventionAbandoned
}

// Intervention is one run through the five phases for one pattern. At most
// one active intervention exists per pattern; the orchestrator owns the
// lifecycle exclusively.
type Intervention struct {
	ID              uuid.UUID          `json:"id"`
	PatternID       uuid.UUID          `json:"pattern_id"`
	Phase           Phase              `json:"phase"`
	Status          InterventionStatus `json:"status"`
	MismatchRetries int                `json:"mismatch_retries"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	PausedAt        *time.Time         `json:"paused_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}
