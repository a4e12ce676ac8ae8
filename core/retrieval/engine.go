// Package retrieval composes lexical rank, vector similarity and quality
// score into one hybrid ranking, and answers entity-to-entity similarity
// queries with an index path plus a bounded linear-scan fallback.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/entigraph/entigraph/model"
	"github.com/google/uuid"
)

// SearchStore is the hybrid ranking query the engine delegates to storage
type SearchStore interface {
	SearchHybrid(queryText string, queryVector []float32, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SearchResult, error)
}

// SimilarityStore covers the embedding reads similarity search needs
type SimilarityStore interface {
	SelectSimilarEntities(entityID uuid.UUID, modelID uuid.UUID, threshold float64, limit int) ([]*model.SimilarityResult, error)
	SelectCurrentEmbedding(entityID uuid.UUID, modelID uuid.UUID) (*model.EmbeddingRecord, error)
	SelectCurrentEmbeddings(modelID uuid.UUID, limit int) ([]*model.EmbeddingRecord, error)
	CountCurrentEmbeddings(modelID uuid.UUID) (int64, error)
}

// EntityStore resolves entity ids reached by the fallback scan
type EntityStore interface {
	SelectEntity(id uuid.UUID) (*model.Entity, error)
}

// Engine provides hybrid search and similarity retrieval
type Engine struct {
	search     SearchStore
	similarity SimilarityStore
	entities   EntityStore
}

// NewEngine creates a new retrieval engine
func NewEngine(search SearchStore, similarity SimilarityStore, entities EntityStore) *Engine {
	return &Engine{
		search:     search,
		similarity: similarity,
		entities:   entities,
	}
}

// Search ranks entities by the weighted combination of text rank, vector
// similarity and quality score. At least one of queryText and queryVector
// must be given; entities matching neither signal are excluded by the
// storage query.
func (e *Engine) Search(ctx context.Context, queryText string, queryVector []float32, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SearchResult, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}
	if queryText == "" && len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: query text or query vector required", model.ErrValidation)
	}

	return e.search.SearchHybrid(queryText, queryVector, modelID, config)
}

// SimilarTo ranks all other entities by cosine similarity to the query
// entity's current embedding, descending, with ties broken by ascending
// entity id. Small corpora are scanned linearly in Go; past
// config.LinearScanLimit current embeddings the vector index path is used.
func (e *Engine) SimilarTo(ctx context.Context, entityID uuid.UUID, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SimilarityResult, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	if config.LinearScanLimit > 0 {
		count, err := e.similarity.CountCurrentEmbeddings(modelID)
		if err != nil {
			return nil, err
		}
		if count <= int64(config.LinearScanLimit) {
			return e.similarToLinear(entityID, modelID, config)
		}
	}

	return e.similarity.SelectSimilarEntities(entityID, modelID, config.SimilarityThreshold, config.MaxResults)
}

// similarToLinear is the bounded exact fallback for small corpora
func (e *Engine) similarToLinear(entityID uuid.UUID, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SimilarityResult, error) {
	query, err := e.similarity.SelectCurrentEmbedding(entityID, modelID)
	if err != nil {
		return nil, err
	}

	records, err := e.similarity.SelectCurrentEmbeddings(modelID, config.LinearScanLimit)
	if err != nil {
		return nil, err
	}

	var results []*model.SimilarityResult
	for _, record := range records {
		if record.EntityID == entityID {
			continue
		}

		similarity := CosineSimilarity(query.Vector, record.Vector)
		if similarity < config.SimilarityThreshold {
			continue
		}

		entity, err := e.entities.SelectEntity(record.EntityID)
		if err != nil {
			// Entity deleted between the scan and the lookup. Any other
			// store failure surfaces instead of shrinking the result.
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}

		results = append(results, &model.SimilarityResult{
			Entity:     entity,
			Similarity: similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Entity.ID.String() < results[j].Entity.ID.String()
	})

	if config.MaxResults > 0 && len(results) > config.MaxResults {
		results = results[:config.MaxResults]
	}

	return results, nil
}

// CombinedScore computes the weighted hybrid score from its three signals.
// This mirrors the ranking the storage query applies and exists so ranking
// policy stays checkable without a database.
func CombinedScore(config *model.QueryConfig, textRank float64, vectorSimilarity float64, qualityScore float64) float64 {
	return config.TextWeight*textRank +
		config.VectorWeight*vectorSimilarity +
		config.QualityWeight*qualityScore
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
