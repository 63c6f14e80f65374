package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Window names one of the five dimensions of an episodic capture.
type Window string

const (
	WindowSenses     Window = "senses"
	WindowActions    Window = "actions"
	WindowEmotions   Window = "emotions"
	WindowImpulses   Window = "impulses"
	WindowCognitions Window = "cognitions"
)

// Windows lists the five dimensions in canonical order.
var Windows = []Window{WindowSenses, WindowActions, WindowEmotions, WindowImpulses, WindowCognitions}

func ValidWindow(w string) bool {
	switch Window(w) {
	case WindowSenses, WindowActions, WindowEmotions, WindowImpulses, WindowCognitions:
		return true
	}
	return false
}

// Per-day decay rates. Cognitions decays slowest: it is the consolidation
// target, and the belief must remain extractable after sensory detail is gone.
var DecayRates = map[Window]float64{
	WindowSenses:     0.5,
	WindowActions:    0.6,
	WindowEmotions:   0.7,
	WindowImpulses:   0.65,
	WindowCognitions: 0.3,
}

// maxDecayRate drives overall capture confidence, since the minimum window
// confidence always belongs to the fastest-decaying window.
const maxDecayRate = 0.7

// TurningPointIntensity is the emotional intensity above which a capture is
// marked a turning point and exempted from decay.
const TurningPointIntensity = 8.5

// Sub-field keys of the cognitions window, in core-belief extraction priority
// order.
const (
	CognitionPrediction       = "prediction"
	CognitionInterpretation   = "interpretation"
	CognitionAutomaticThought = "automatic_thought"
)

// WindowPayload holds the free-text sub-fields of one window.
type WindowPayload map[string]string

// Empty reports whether the payload carries no usable content.
func (p WindowPayload) Empty() bool {
	for _, v := range p {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FiveWindowCapture is an immutable episodic snapshot tied to an intervention.
// The payload never changes after creation; decay acts on the derived
// confidence columns only.
type FiveWindowCapture struct {
	ID                   uuid.UUID         `json:"id"`
	InterventionID       uuid.UUID         `json:"intervention_id"`
	Senses               WindowPayload     `json:"senses"`
	Actions              WindowPayload     `json:"actions"`
	Emotions             WindowPayload     `json:"emotions"`
	Impulses             WindowPayload     `json:"impulses"`
	Cognitions           WindowPayload     `json:"cognitions"`
	Context              map[string]string `json:"context,omitempty"`
	EmotionalIntensity   float64           `json:"emotional_intensity"`
	TurningPoint         bool              `json:"turning_point"`
	PreserveIndefinitely bool              `json:"preserve_indefinitely"`
	Confidence           float64           `json:"confidence"`
	WindowConfidence     map[Window]float64 `json:"window_confidence,omitempty"`
	ArchiveEligible      bool              `json:"archive_eligible"`
	DecayedAt            *time.Time        `json:"decayed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// Payload returns the named window.
func (c *FiveWindowCapture) Payload(w Window) WindowPayload {
	switch w {
	case WindowSenses:
		return c.Senses
	case WindowActions:
		return c.Actions
	case WindowEmotions:
		return c.Emotions
	case WindowImpulses:
		return c.Impulses
	case WindowCognitions:
		return c.Cognitions
	}
	return nil
}

// DecayExempt reports whether this capture is excluded from the decay scan.
func (c *FiveWindowCapture) DecayExempt() bool {
	return c.TurningPoint || c.PreserveIndefinitely
}

// CoreBelief extracts the semantic belief from the cognitions window, taking
// the most specific non-empty sub-field: prediction, then interpretation,
// then automatic thought.
func (c *FiveWindowCapture) CoreBelief() string {
	for _, key := range []string{CognitionPrediction, CognitionInterpretation, CognitionAutomaticThought} {
		if v := strings.TrimSpace(c.Cognitions[key]); v != "" {
			return v
		}
	}
	return ""
}

// WindowConfidenceAt computes exp(-rate*t) for one window at elapsed time t.
// Pure function of elapsed time; never persisted state.
func WindowConfidenceAt(w Window, elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	days := elapsed.Hours() / 24
	return math.Exp(-DecayRates[w] * days)
}

// ConfidenceAt returns the overall capture confidence at asOf: the minimum
// window confidence, so any single fully-decayed window flags the capture.
func (c *FiveWindowCapture) ConfidenceAt(asOf time.Time) float64 {
	elapsed := asOf.Sub(c.CreatedAt)
	min := 1.0
	for _, w := range Windows {
		if conf := WindowConfidenceAt(w, elapsed); conf < min {
			min = conf
		}
	}
	return min
}

// WindowConfidencesAt computes confidence for each window at asOf.
func (c *FiveWindowCapture) WindowConfidencesAt(asOf time.Time) map[Window]float64 {
	elapsed := asOf.Sub(c.CreatedAt)
	out := make(map[Window]float64, len(Windows))
	for _, w := range Windows {
		out[w] = WindowConfidenceAt(w, elapsed)
	}
	return out
}

// AgeAtFloor returns the elapsed time after which overall capture confidence
// falls below floor. Used to turn the confidence floor into a created-before
// cutoff for the candidate scan. Confidence never reaches zero, so a floor at
// or below zero yields the maximum duration and no capture qualifies.
func AgeAtFloor(floor float64) time.Duration {
	if floor <= 0 {
		return math.MaxInt64
	}
	if floor >= 1 {
		return 0
	}
	days := -math.Log(floor) / maxDecayRate
	return time.Duration(days * 24 * float64(time.Hour))
}
