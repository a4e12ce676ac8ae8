package main

import (
	"context"
	"fmt"
	"log"

	"github.com/entigraph/entigraph"
	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
)

// toyVector spreads a few hand-picked values over the embedding dimension so
// the example stays self-contained without an embedding service.
func toyVector(dim int, values ...float32) []float32 {
	vector := make([]float32, dim)
	copy(vector, values)
	return vector
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	const embeddingDim = 8

	registry, err := entigraph.NewRegistry(dbConfig, embeddingDim)
	if err != nil {
		log.Fatalf("Failed to create registry: %v", err)
	}
	defer registry.Close()

	// Register a few survey entities from different source tables
	pump := &model.Entity{
		Type:          "utility",
		CanonicalName: "Pump Station 7",
		SourceTable:   "utilities",
		SourceID:      "PS-7",
		Aliases:       []string{"PS7", "Lift Station 7"},
		Tags:          []string{"water", "infrastructure"},
		Attributes: model.Metadata{
			"description": "Primary water pump station serving the north district",
			"capacity":    "1200 gpm",
		},
	}
	reservoir := &model.Entity{
		Type:          "utility",
		CanonicalName: "North Reservoir",
		SourceTable:   "utilities",
		SourceID:      "RES-N",
		Attributes: model.Metadata{
			"description": "Elevated storage reservoir for the north district",
		},
	}
	parcel := &model.Entity{
		Type:          "parcel",
		CanonicalName: "Parcel 42-118",
		SourceTable:   "parcels",
		SourceID:      "42-118",
	}

	for _, entity := range []*model.Entity{pump, reservoir, parcel} {
		if err := registry.Register(entity); err != nil {
			log.Fatalf("Failed to register %s: %v", entity.CanonicalName, err)
		}
		fmt.Printf("Registered %s (quality %.3f)\n", entity.CanonicalName, entity.QualityScore)
	}

	// Relate them; quality scores of both endpoints rise with the first edge
	feeds := &model.Edge{
		SubjectEntityID: pump.ID,
		Predicate:       "feeds",
		ObjectEntityID:  reservoir.ID,
		Type:            model.RelationshipTypeEngineering,
		ConfidenceScore: 0.95,
		Engineering:     true,
	}
	within := &model.Edge{
		SubjectEntityID: pump.ID,
		Predicate:       "located_within",
		ObjectEntityID:  parcel.ID,
		Type:            model.RelationshipTypeSpatial,
		ConfidenceScore: 1.0,
		Spatial:         true,
	}
	for _, edge := range []*model.Edge{feeds, within} {
		if err := registry.AddEdge(edge); err != nil {
			log.Fatalf("Failed to add edge %s: %v", edge.Predicate, err)
		}
	}

	// Register an embedding model and store a versioned embedding
	embeddingModel := &model.EmbeddingModel{
		Name:       "toy-embedder",
		Dimensions: embeddingDim,
		Provider:   "example",
		Active:     true,
	}
	if err := registry.RegisterModel(embeddingModel); err != nil {
		log.Fatalf("Failed to register embedding model: %v", err)
	}

	pumpVector := toyVector(embeddingDim, 0.9, 0.1, 0.3)
	if _, err := registry.UpsertEmbedding(pump.ID, embeddingModel.ID, pumpVector, "water pump station north district"); err != nil {
		log.Fatalf("Failed to upsert embedding: %v", err)
	}

	reservoirVector := toyVector(embeddingDim, 0.8, 0.2, 0.4)
	if _, err := registry.UpsertEmbedding(reservoir.ID, embeddingModel.ID, reservoirVector, "water storage reservoir north district"); err != nil {
		log.Fatalf("Failed to upsert embedding: %v", err)
	}

	ctx := context.Background()

	// Hybrid search combines lexical match, vector similarity and quality
	queryVector := toyVector(embeddingDim, 0.85, 0.15, 0.35)
	results, err := registry.Search(ctx, "pump station", queryVector, embeddingModel.ID, nil)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	fmt.Println("\nHybrid search for \"pump station\":")
	for i, result := range results {
		fmt.Printf("  %d. %-20s score=%.3f (text=%.3f vector=%.3f quality=%.3f)\n",
			i+1, result.Entity.CanonicalName, result.Score, result.TextRank, result.VectorSimilarity, result.QualityScore)
	}

	// Alias resolution ranks the canonical name above aliases
	matches, err := registry.ResolveAlias("PS7", 5)
	if err != nil {
		log.Fatalf("Alias resolution failed: %v", err)
	}
	fmt.Println("\nResolving alias \"PS7\":")
	for _, match := range matches {
		fmt.Printf("  %s (confidence %.2f)\n", match.CanonicalName, match.Confidence)
	}

	// Bounded traversal from the pump station
	related, err := registry.RelatedWithin(ctx, pump.ID, nil)
	if err != nil {
		log.Fatalf("Traversal failed: %v", err)
	}
	fmt.Println("\nEntities related to Pump Station 7 within 2 hops:")
	for _, node := range related {
		fmt.Printf("  hop %d: %s via %v\n", node.HopDistance, node.CanonicalName, node.Path)
	}

	// Graph summary snapshot
	if err := registry.RefreshSummary(); err != nil {
		log.Fatalf("Summary refresh failed: %v", err)
	}
	fmt.Println("\nMost connected entities:")
	for _, summary := range registry.Summary.Snapshot().TopConnected(3) {
		fmt.Printf("  %-20s in=%d out=%d predicates=%v\n",
			summary.CanonicalName, summary.InDegree, summary.OutDegree, summary.Predicates)
	}
}
