package model

import (
	"time"

	"github.com/google/uuid"
)

// GraphSummary holds per-entity aggregate statistics over the relationship
// graph. It is a derived cache, never a source of truth; staleness is bounded
// by the refresh interval of the summary cache.
type GraphSummary struct {
	EntityID         uuid.UUID `json:"entity_id"`
	CanonicalName    string    `json:"canonical_name"`
	InDegree         int       `json:"in_degree"`
	OutDegree        int       `json:"out_degree"`
	Predicates       []string  `json:"predicates,omitempty"` // Distinct predicates on either direction
	SpatialEdges     int       `json:"spatial_edges"`
	EngineeringEdges int       `json:"engineering_edges"`
	AIGeneratedEdges int       `json:"ai_generated_edges"`
	ComputedAt       time.Time `json:"computed_at"`
}

// TotalDegree returns the combined in and out degree
func (s *GraphSummary) TotalDegree() int {
	return s.InDegree + s.OutDegree
}
