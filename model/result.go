package model

// SearchResult represents an entity retrieved by a hybrid query
type SearchResult struct {
	Entity           *Entity `json:"entity"`
	Score            float64 `json:"score"`             // Combined score from ranking
	TextRank         float64 `json:"text_rank"`         // Normalized lexical relevance
	VectorSimilarity float64 `json:"vector_similarity"` // Cosine similarity to the query vector
	QualityScore     float64 `json:"quality_score"`
	RetrievalMethod  string  `json:"retrieval_method"` // How it was retrieved (lexical, vector, hybrid)
}

// SimilarityResult represents an entity ranked by embedding similarity
type SimilarityResult struct {
	Entity     *Entity `json:"entity"`
	Similarity float64 `json:"similarity"`
}
