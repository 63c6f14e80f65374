package domain

import (
	"time"

	"github.com/google/uuid"
)

// RelationType labels an edge in the long-term belief graph.
type RelationType string

const (
	RelationSupersedes  RelationType = "supersedes"
	RelationDerivedFrom RelationType = "derived_from"
)

// BeliefNode is a confirmed belief promoted to the long-term graph after a
// pattern resolves.
type BeliefNode struct {
	ID           uuid.UUID  `json:"id"`
	PatternID    *uuid.UUID `json:"pattern_id,omitempty"`
	RewriteID    *uuid.UUID `json:"rewrite_id,omitempty"`
	Content      string     `json:"content"`
	Adaptiveness float64    `json:"adaptiveness"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BeliefEdge links two nodes in the long-term belief graph.
type BeliefEdge struct {
	ID           uuid.UUID    `json:"id"`
	SourceID     uuid.UUID    `json:"source_id"`
	TargetID     uuid.UUID    `json:"target_id"`
	RelationType RelationType `json:"relation_type"`
	Strength     float64      `json:"strength"`
	CreatedAt    time.Time    `json:"created_at"`
}
