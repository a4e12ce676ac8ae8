package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType represents the category of a relationship between entities
type RelationshipType string

const (
	RelationshipTypeSpatial     RelationshipType = "spatial"
	RelationshipTypeEngineering RelationshipType = "engineering"
	RelationshipTypeSemantic    RelationshipType = "semantic"
	RelationshipTypeTemporal    RelationshipType = "temporal"
	RelationshipTypeCustom      RelationshipType = "custom"
)

// Edge represents a directed, confidence-weighted relationship between two
// entities. (subject, predicate, object) is unique; identity fields are
// immutable once created, only confidence and attributes may change.
type Edge struct {
	ID              uuid.UUID        `json:"id"`
	SubjectEntityID uuid.UUID        `json:"subject_entity_id"`
	Predicate       string           `json:"predicate"`
	ObjectEntityID  uuid.UUID        `json:"object_entity_id"`
	Type            RelationshipType `json:"relationship_type"`
	ConfidenceScore float64          `json:"confidence_score"`
	Spatial         bool             `json:"spatial"`
	Engineering     bool             `json:"engineering"`
	AIGenerated     bool             `json:"ai_generated"`
	Attributes      Metadata         `json:"attributes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TraversalNode represents an entity reached by graph traversal, reported
// once at its minimum hop distance with one witness predicate path.
type TraversalNode struct {
	EntityID      uuid.UUID `json:"entity_id"`
	CanonicalName string    `json:"canonical_name"`
	HopDistance   int       `json:"hop_distance"`
	Path          []string  `json:"path"` // Ordered predicate sequence from the start entity
}
