package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityStatus represents the lifecycle status of an entity
type EntityStatus string

const (
	EntityStatusActive     EntityStatus = "active"
	EntityStatusDeprecated EntityStatus = "deprecated"
	EntityStatusSuperseded EntityStatus = "superseded"
)

// Entity represents a canonical domain object (survey point, CAD layer, block, parcel, utility, etc.)
type Entity struct {
	ID            uuid.UUID    `json:"id"`
	Type          string       `json:"entity_type"`
	CanonicalName string       `json:"canonical_name"`
	SourceTable   string       `json:"source_table"`
	SourceID      string       `json:"source_id"`
	Aliases       []string     `json:"aliases,omitempty"` // Ordered, earlier aliases carry higher confidence
	Tags          []string     `json:"tags,omitempty"`
	Status        EntityStatus `json:"status"`
	QualityScore  float64      `json:"quality_score"`
	Attributes    Metadata     `json:"attributes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// AliasMatch is a candidate returned by alias resolution, ranked by
// canonical flag and alias position
type AliasMatch struct {
	EntityID      uuid.UUID `json:"entity_id"`
	CanonicalName string    `json:"canonical_name"`
	IsCanonical   bool      `json:"is_canonical"`
	Confidence    float64   `json:"confidence"`
}

// SearchText derives the text zones indexed for lexical search.
// The canonical name (plus aliases) is the highest-weight zone, the
// description attribute the medium zone and tags the lowest. Zone weights
// are an explicit config (TextZoneWeights), not hidden trigger logic.
func (e *Entity) SearchText() (name string, description string, tags string) {
	name = e.CanonicalName
	if len(e.Aliases) > 0 {
		name = name + " " + strings.Join(e.Aliases, " ")
	}
	if d, ok := e.Attributes["description"].(string); ok {
		description = d
	}
	tags = strings.Join(e.Tags, " ")
	return name, description, tags
}

// FilledAttributeCounts returns how many attributes carry a non-empty value
// and the total attribute count, the completeness inputs of the quality score.
func (e *Entity) FilledAttributeCounts() (filled int, total int) {
	for _, v := range e.Attributes {
		total++
		switch value := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(value) != "" {
				filled++
			}
		default:
			filled++
		}
	}
	return filled, total
}

// EmbeddingModel describes an embedding model entities can be embedded under
type EmbeddingModel struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Dimensions int       `json:"dimensions"`
	Provider   string    `json:"provider,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
