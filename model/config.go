package model

// TextZoneWeights maps the indexed text zones to PostgreSQL tsvector weight
// labels. Canonical name and aliases rank highest, the description attribute
// medium, tags lowest. This tiering drives lexical relevance, not separate
// per-field indexes.
type TextZoneWeights struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// DefaultTextZoneWeights returns the default zone-to-weight mapping
func DefaultTextZoneWeights() TextZoneWeights {
	return TextZoneWeights{
		Name:        "A",
		Description: "B",
		Tags:        "C",
	}
}

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	// Result shaping
	MaxResults          int     `json:"max_results"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`

	// Filtering
	EntityTypes []string `json:"entity_types,omitempty"` // Filter by entity types
	MinQuality  float64  `json:"min_quality,omitempty"`  // Minimum quality score, 0 disables

	// Graph traversal parameters
	MaxHops       int                `json:"max_hops,omitempty"`
	EdgeTypes     []RelationshipType `json:"edge_types,omitempty"` // Filter by relationship types
	MaxVisited    int                `json:"max_visited,omitempty"`
	MinConfidence float64            `json:"min_confidence,omitempty"` // Skip edges below this confidence

	// Ranking weights. Fixed empirical defaults favoring semantic
	// similarity over raw keyword match; tunable policy, not derived law.
	TextWeight    float64 `json:"text_weight"`
	VectorWeight  float64 `json:"vector_weight"`
	QualityWeight float64 `json:"quality_weight"`

	// Bounded fallback for similarity search without a usable vector index
	LinearScanLimit int `json:"linear_scan_limit,omitempty"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		MaxResults:          10,
		SimilarityThreshold: 0.0,
		MaxHops:             2,
		EdgeTypes:           nil, // All types
		MaxVisited:          10000,
		MinConfidence:       0.0,
		TextWeight:          0.3,
		VectorWeight:        0.5,
		QualityWeight:       0.2,
		LinearScanLimit:     5000,
	}
}
