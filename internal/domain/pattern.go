package domain

import (
	"time"

	"github.com/google/uuid"
)

// PatternDomain categorizes the life area a maladaptive pattern belongs to.
type PatternDomain string

const (
	DomainRelationships PatternDomain = "relationships"
	DomainWork          PatternDomain = "work"
	DomainSelfWorth     PatternDomain = "self_worth"
	DomainHealth        PatternDomain = "health"
	DomainSafety        PatternDomain = "safety"
	DomainOther         PatternDomain = "other"
)

func ValidPatternDomain(d string) bool {
	switch PatternDomain(d) {
	case DomainRelationships, DomainWork, DomainSelfWorth, DomainHealth, DomainSafety, DomainOther:
		return true
	}
	return false
}

// PatternStatus tracks where a pattern sits in the intervention pipeline.
type PatternStatus string

const (
	PatternDetected PatternStatus = "detected"
	PatternQueued   PatternStatus = "queued"
	PatternActive   PatternStatus = "active"
	PatternResolved PatternStatus = "resolved"
)

func ValidPatternStatus(s string) bool {
	switch PatternStatus(s) {
	case PatternDetected, PatternQueued, PatternActive, PatternResolved:
		return true
	}
	return false
}

var patternStatusRank = map[PatternStatus]int{
	PatternDetected: 0,
	PatternQueued:   1,
	PatternActive:   2,
	PatternResolved: 3,
}

// CanTransitionTo enforces forward-only status movement, with two exceptions:
// resolved → active when a resolved pattern re-triggers, and active → queued
// when an intervention ends without resolving the pattern (abandonment or a
// follow-up re-arm).
func (s PatternStatus) CanTransitionTo(next PatternStatus) bool {
	if s == PatternResolved && next == PatternActive {
		return true
	}
	if s == PatternActive && next == PatternQueued {
		return true
	}
	return patternStatusRank[next] > patternStatusRank[s]
}

// MaladaptivePattern is a recurring belief-behavior regularity detected from
// capture history. RecurrenceCount only increases.
type MaladaptivePattern struct {
	ID               uuid.UUID         `json:"id"`
	BeliefContent    string            `json:"belief_content"`
	Domain           PatternDomain     `json:"domain"`
	TriggerContext   map[string]string `json:"trigger_context,omitempty"`
	RecurrenceCount  int               `json:"recurrence_count"`
	SeverityScore    float64           `json:"severity_score"`
	Status           PatternStatus     `json:"status"`
	Embedding        []float32         `json:"-"`
	FirstDetectedAt  time.Time         `json:"first_detected_at"`
	LastOccurrenceAt time.Time         `json:"last_occurrence_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// PatternWithScore is a pattern with a belief-similarity score.
type PatternWithScore struct {
	MaladaptivePattern
	Score float32 `json:"score"`
}

// PatternQuery filters pattern listings. Results are always ordered by
// last occurrence descending.
type PatternQuery struct {
	Domain *PatternDomain
	Status *PatternStatus
	Limit  int
}
