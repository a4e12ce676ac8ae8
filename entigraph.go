package entigraph

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/entigraph/entigraph/core/graph"
	"github.com/entigraph/entigraph/core/retrieval"
	"github.com/entigraph/entigraph/core/scoring"
	"github.com/entigraph/entigraph/core/summary"
	"github.com/entigraph/entigraph/database"
	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
	loadSql "github.com/entigraph/entigraph/sql"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Registry provides a unified interface to the entity registry, embedding
// store, relationship graph, hybrid retrieval and graph summary cache
type Registry struct {
	DB         *helper.Database
	Entities   *database.EntitiesDBHandler
	Embeddings *database.EmbeddingsDBHandler
	Edges      *database.EdgesDBHandler
	Summaries  *database.SummaryDBHandler
	Engine     *retrieval.Engine
	Summary    *summary.Cache
	// Quality scoring weights, applied on every recompute
	Quality scoring.Config
	// Logging
	log *slog.Logger
}

// NewRegistry creates a new Registry instance with all handlers initialized.
// embeddingDim fixes the vector column width for this deployment.
func NewRegistry(config *helper.DatabaseConfiguration, embeddingDim int) (*Registry, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("entigraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in dependency order (entities first, everything
	// else references them). force=false to not reload existing functions.
	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	embeddings, err := database.NewEmbeddingsDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create embeddings handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	summaries, err := database.NewSummaryDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create summary handler", err)
	}

	engine := retrieval.NewEngine(entities, embeddings, entities)
	summaryCache := summary.NewCache(summaries, logger)

	return &Registry{
		DB:         db,
		Entities:   entities,
		Embeddings: embeddings,
		Edges:      edges,
		Summaries:  summaries,
		Engine:     engine,
		Summary:    summaryCache,
		Quality:    scoring.DefaultConfig(),
		log:        logger,
	}, nil
}

// Close stops the summary refresh loop and closes the database connection
func (r *Registry) Close() error {
	if r.Summary != nil {
		r.Summary.Close()
	}
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}

// Register registers a new entity for a domain source record. The initial
// quality score is computed from attribute completeness alone, a fresh
// entity has neither embeddings nor relationships yet.
func (r *Registry) Register(entity *model.Entity) error {
	filled, total := entity.FilledAttributeCounts()
	entity.QualityScore = scoring.Score(r.Quality, filled, total, false, false)

	err := r.Entities.InsertEntity(entity)
	if err != nil {
		return helper.NewError("register entity", err)
	}

	r.log.Info("Registered entity", slog.String("entity_id", entity.ID.String()), slog.String("canonical_name", entity.CanonicalName))

	return nil
}

// UpdateAttributes applies an attribute patch to an entity. Patch keys
// overwrite existing keys, nil values delete them, unnamed keys are kept.
// The search index and quality score are recomputed in the same call.
func (r *Registry) UpdateAttributes(entityID uuid.UUID, patch model.Metadata) (*model.Entity, error) {
	entity, err := r.Entities.SelectEntity(entityID)
	if err != nil {
		return nil, helper.NewError("select entity", err)
	}

	entity.Attributes = entity.Attributes.Merge(patch)

	err = r.Entities.UpdateEntityAttributes(entity)
	if err != nil {
		return nil, helper.NewError("update attributes", err)
	}

	err = r.RecomputeQuality(entityID)
	if err != nil {
		return nil, err
	}

	return r.Entities.SelectEntity(entityID)
}

// ResolveAlias returns ranked entity candidates for a name
func (r *Registry) ResolveAlias(name string, limit int) ([]*model.AliasMatch, error) {
	return r.Entities.ResolveAlias(name, limit)
}

// GetEntity returns an entity by id
func (r *Registry) GetEntity(id uuid.UUID) (*model.Entity, error) {
	return r.Entities.SelectEntity(id)
}

// GetEntityBySourceRef returns the entity registered for a source record
func (r *Registry) GetEntityBySourceRef(sourceTable string, sourceID string) (*model.Entity, error) {
	return r.Entities.SelectEntityBySourceRef(sourceTable, sourceID)
}

// GetEntitiesByType returns entities of one type, newest first
func (r *Registry) GetEntitiesByType(entityType string, limit int) ([]*model.Entity, error) {
	return r.Entities.SelectEntitiesByType(entityType, limit)
}

// DeleteEntity removes an entity with its embeddings and edges
func (r *Registry) DeleteEntity(id uuid.UUID) error {
	return r.Entities.DeleteEntity(id)
}

// RegisterModel registers an embedding model
func (r *Registry) RegisterModel(embeddingModel *model.EmbeddingModel) error {
	return r.Embeddings.InsertModel(embeddingModel)
}

// GetModelByName returns an embedding model by its unique name
func (r *Registry) GetModelByName(name string) (*model.EmbeddingModel, error) {
	return r.Embeddings.SelectModelByName(name)
}

// DeactivateModel marks a model inactive; upserts against it are rejected,
// stored embeddings stay readable
func (r *Registry) DeactivateModel(id uuid.UUID) error {
	return r.Embeddings.SetModelActive(id, false)
}

// ListEmbeddingVersions returns the append-only embedding history for
// (entity, model), newest version first
func (r *Registry) ListEmbeddingVersions(entityID uuid.UUID, modelID uuid.UUID) ([]*model.EmbeddingRecord, error) {
	return r.Embeddings.SelectEmbeddingVersions(entityID, modelID)
}

// UpsertEmbedding stores a new current embedding for (entity, model) and
// recomputes the entity's quality score, a first embedding raises it
func (r *Registry) UpsertEmbedding(entityID uuid.UUID, modelID uuid.UUID, vector []float32, embeddingText string) (*model.EmbeddingRecord, error) {
	record, err := r.Embeddings.UpsertEmbedding(entityID, modelID, vector, embeddingText)
	if err != nil {
		return nil, err
	}

	err = r.RecomputeQuality(entityID)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// AddEdge asserts a relationship between two entities and recomputes the
// quality score of both endpoints, a first relationship raises it
func (r *Registry) AddEdge(edge *model.Edge) error {
	err := r.Edges.InsertEdge(edge)
	if err != nil {
		return err
	}

	err = r.RecomputeQuality(edge.SubjectEntityID)
	if err != nil {
		return err
	}
	return r.RecomputeQuality(edge.ObjectEntityID)
}

// UpdateEdgeConfidence updates the confidence and attribute patch of an
// edge; the (subject, predicate, object) identity is immutable
func (r *Registry) UpdateEdgeConfidence(edgeID uuid.UUID, confidenceScore float64, attributes model.Metadata) (*model.Edge, error) {
	return r.Edges.UpdateEdgeConfidence(edgeID, confidenceScore, attributes)
}

// Search performs hybrid search over text rank, vector similarity and
// quality score
func (r *Registry) Search(ctx context.Context, queryText string, queryVector []float32, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SearchResult, error) {
	return r.Engine.Search(ctx, queryText, queryVector, modelID, config)
}

// SimilarTo ranks other entities by cosine similarity to the entity's
// current embedding
func (r *Registry) SimilarTo(ctx context.Context, entityID uuid.UUID, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SimilarityResult, error) {
	return r.Engine.SimilarTo(ctx, entityID, modelID, config)
}

// RelatedWithin performs bounded breadth-first traversal from an entity
func (r *Registry) RelatedWithin(ctx context.Context, startID uuid.UUID, config *model.QueryConfig) ([]*model.TraversalNode, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}
	return graph.RelatedWithin(ctx, &graphStore{registry: r}, startID, graph.OptionsFromQueryConfig(config))
}

// RefreshSummary recomputes the graph summary snapshot once
func (r *Registry) RefreshSummary() error {
	return r.Summary.Refresh()
}

// StartSummaryRefresh starts the periodic background refresh of the graph
// summary cache
func (r *Registry) StartSummaryRefresh(ctx context.Context, interval time.Duration) {
	r.Summary.Start(ctx, interval)
}

// RecomputeQuality recomputes and persists the quality score of one entity
// from its attribute completeness, embedding presence and edge count
func (r *Registry) RecomputeQuality(entityID uuid.UUID) error {
	entity, err := r.Entities.SelectEntity(entityID)
	if err != nil {
		return helper.NewError("select entity", err)
	}

	hasEmbedding, err := r.Embeddings.HasCurrentEmbedding(entityID)
	if err != nil {
		return helper.NewError("check embedding", err)
	}

	edgeCount, err := r.Edges.CountEdgesForEntity(entityID)
	if err != nil {
		return helper.NewError("count edges", err)
	}

	filled, total := entity.FilledAttributeCounts()
	score := scoring.Score(r.Quality, filled, total, hasEmbedding, edgeCount > 0)

	if score == entity.QualityScore {
		return nil
	}

	err = r.Entities.UpdateEntityQuality(entityID, score)
	if err != nil {
		return helper.NewError("update quality", err)
	}

	return nil
}

// RecomputeQualityScores recomputes the quality score of the given entities
// using a bounded worker pool. Returns the number of entities updated
// without error; individual failures are logged and skipped.
func (r *Registry) RecomputeQualityScores(entityIDs []uuid.UUID, workers int) (int, error) {
	if workers <= 0 {
		workers = 4
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, helper.NewError("create worker pool", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for _, entityID := range entityIDs {
		entityID := entityID
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := r.RecomputeQuality(entityID); err != nil {
				r.log.Warn("Quality recompute failed", slog.String("entity_id", entityID.String()), slog.Any("error", err))
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			return succeeded, helper.NewError("submit quality recompute", err)
		}
	}

	wg.Wait()

	r.log.Info("Recomputed quality scores", slog.Int("entities", len(entityIDs)), slog.Int("succeeded", succeeded))

	return succeeded, nil
}

// RecomputeQualityScoresByType recomputes quality scores for all entities of
// the given type
func (r *Registry) RecomputeQualityScoresByType(entityType string, limit int, workers int) (int, error) {
	entities, err := r.Entities.SelectEntitiesByType(entityType, limit)
	if err != nil {
		return 0, helper.NewError("select entities", err)
	}

	entityIDs := make([]uuid.UUID, len(entities))
	for i, entity := range entities {
		entityIDs[i] = entity.ID
	}

	return r.RecomputeQualityScores(entityIDs, workers)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (r *Registry) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return r.Embeddings.ChangeIndexType(ctx, indexType, params)
}

// graphStore adapts the database handlers to the traversal interface
type graphStore struct {
	registry *Registry
}

func (s *graphStore) GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	return s.registry.Entities.SelectEntity(id)
}

func (s *graphStore) GetEdgesFromEntity(ctx context.Context, entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error) {
	return s.registry.Edges.SelectEdgesFromEntity(entityID, relationshipType)
}

// Compile-time interface checks
var (
	_ graph.GraphStore          = &graphStore{}
	_ retrieval.SearchStore     = &database.EntitiesDBHandler{}
	_ retrieval.SimilarityStore = &database.EmbeddingsDBHandler{}
	_ retrieval.EntityStore     = &database.EntitiesDBHandler{}
	_ summary.SummarySource     = &database.SummaryDBHandler{}
)
