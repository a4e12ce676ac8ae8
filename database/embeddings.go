package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
	loadSql "github.com/entigraph/entigraph/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// upsertRetries bounds the optimistic retry loop on version conflicts.
const upsertRetries = 3

// EmbeddingsDBHandlerFunctions defines the interface for Embeddings database operations.
type EmbeddingsDBHandlerFunctions interface {
	InsertModel(embeddingModel *model.EmbeddingModel) error
	SelectModel(id uuid.UUID) (*model.EmbeddingModel, error)
	SelectModelByName(name string) (*model.EmbeddingModel, error)
	SetModelActive(id uuid.UUID, active bool) error
	UpsertEmbedding(entityID uuid.UUID, modelID uuid.UUID, vector []float32, embeddingText string) (*model.EmbeddingRecord, error)
	SelectCurrentEmbedding(entityID uuid.UUID, modelID uuid.UUID) (*model.EmbeddingRecord, error)
	SelectEmbeddingVersions(entityID uuid.UUID, modelID uuid.UUID) ([]*model.EmbeddingRecord, error)
	HasCurrentEmbedding(entityID uuid.UUID) (bool, error)
	SelectSimilarEntities(entityID uuid.UUID, modelID uuid.UUID, threshold float64, limit int) ([]*model.SimilarityResult, error)
	SelectCurrentEmbeddings(modelID uuid.UUID, limit int) ([]*model.EmbeddingRecord, error)
	CountCurrentEmbeddings(modelID uuid.UUID) (int64, error)
	ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error
}

// EmbeddingsDBHandler handles embedding-related database operations
type EmbeddingsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewEmbeddingsDBHandler creates a new embeddings database handler.
// embeddingDim fixes the vector column width for this deployment; all models
// registered here must match it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, embeddingDim int, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler", "dimensions", embeddingDim)

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'embedding_models' and 'embeddings' tables in the
// database. If the tables already exist, it does not create them again.
// It also creates all necessary indexes.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing embeddings tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables embedding_models and embeddings")

	return nil
}

// InsertModel registers an embedding model. Model names are unique.
func (h *EmbeddingsDBHandler) InsertModel(embeddingModel *model.EmbeddingModel) error {
	if embeddingModel.Dimensions != h.embeddingDim {
		return helper.NewError("validate model", fmt.Errorf("%w: model has %d dimensions, storage is fixed at %d", model.ErrDimensionMismatch, embeddingModel.Dimensions, h.embeddingDim))
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_embedding_model($1, $2, $3, $4)`,
		embeddingModel.Name,
		embeddingModel.Dimensions,
		embeddingModel.Provider,
		embeddingModel.Active,
	)

	err := row.Scan(
		&embeddingModel.ID,
		&embeddingModel.Name,
		&embeddingModel.Dimensions,
		&embeddingModel.Provider,
		&embeddingModel.Active,
		&embeddingModel.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", mapDatabaseError(err))
	}

	return nil
}

// SelectModel retrieves an embedding model by ID
func (h *EmbeddingsDBHandler) SelectModel(id uuid.UUID) (*model.EmbeddingModel, error) {
	embeddingModel := &model.EmbeddingModel{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_embedding_model($1)`,
		id,
	)

	err := row.Scan(
		&embeddingModel.ID,
		&embeddingModel.Name,
		&embeddingModel.Dimensions,
		&embeddingModel.Provider,
		&embeddingModel.Active,
		&embeddingModel.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return embeddingModel, nil
}

// SelectModelByName retrieves an embedding model by its unique name
func (h *EmbeddingsDBHandler) SelectModelByName(name string) (*model.EmbeddingModel, error) {
	embeddingModel := &model.EmbeddingModel{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_embedding_model_by_name($1)`,
		name,
	)

	err := row.Scan(
		&embeddingModel.ID,
		&embeddingModel.Name,
		&embeddingModel.Dimensions,
		&embeddingModel.Provider,
		&embeddingModel.Active,
		&embeddingModel.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return embeddingModel, nil
}

// SetModelActive toggles whether a model accepts new embeddings. Existing
// embeddings under a deactivated model stay readable.
func (h *EmbeddingsDBHandler) SetModelActive(id uuid.UUID, active bool) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_embedding_model_active($1, $2)`,
		id,
		active,
	)
	if err != nil {
		return helper.NewError("exec", mapDatabaseError(err))
	}
	return nil
}

// UpsertEmbedding stores a new current embedding for (entity, model),
// superseding any prior version. The write is optimistic: the observed
// current version is passed to the database, and a concurrent supersede
// triggers a bounded retry with fresh state. After the retries are exhausted
// the conflict surfaces as model.ErrConflict.
func (h *EmbeddingsDBHandler) UpsertEmbedding(entityID uuid.UUID, modelID uuid.UUID, vector []float32, embeddingText string) (*model.EmbeddingRecord, error) {
	embeddingModel, err := h.SelectModel(modelID)
	if err != nil {
		return nil, helper.NewError("select model", err)
	}
	if !embeddingModel.Active {
		return nil, helper.NewError("validate model", fmt.Errorf("%w: model %s is not active", model.ErrValidation, embeddingModel.Name))
	}

	err = model.ValidateVector(vector, embeddingModel.Dimensions)
	if err != nil {
		return nil, helper.NewError("validate vector", err)
	}

	var lastErr error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		expectedVersion := 0
		current, err := h.SelectCurrentEmbedding(entityID, modelID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, helper.NewError("select current embedding", err)
		}
		if current != nil {
			expectedVersion = current.Version
		}

		record, err := h.upsertEmbeddingVersion(entityID, modelID, vector, embeddingText, expectedVersion)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, err
		}

		lastErr = err
		h.db.Logger.Debug("Retrying embedding upsert after version conflict", "entityId", entityID, "attempt", attempt+1)
	}

	return nil, helper.NewError("upsert embedding", lastErr)
}

func (h *EmbeddingsDBHandler) upsertEmbeddingVersion(entityID uuid.UUID, modelID uuid.UUID, vector []float32, embeddingText string, expectedVersion int) (*model.EmbeddingRecord, error) {
	record := &model.EmbeddingRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_embedding($1, $2, $3, $4, $5)`,
		entityID,
		modelID,
		pgvector.NewVector(vector),
		embeddingText,
		expectedVersion,
	)

	err := scanEmbedding(row, record)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return record, nil
}

// SelectCurrentEmbedding retrieves the current embedding for (entity, model)
func (h *EmbeddingsDBHandler) SelectCurrentEmbedding(entityID uuid.UUID, modelID uuid.UUID) (*model.EmbeddingRecord, error) {
	record := &model.EmbeddingRecord{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_current_embedding($1, $2)`,
		entityID,
		modelID,
	)

	err := scanEmbedding(row, record)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return record, nil
}

// SelectEmbeddingVersions retrieves the full version history for
// (entity, model), oldest first
func (h *EmbeddingsDBHandler) SelectEmbeddingVersions(entityID uuid.UUID, modelID uuid.UUID) ([]*model.EmbeddingRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_embedding_versions($1, $2)`,
		entityID,
		modelID,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var records []*model.EmbeddingRecord
	for rows.Next() {
		record := &model.EmbeddingRecord{}
		err := scanEmbedding(rows, record)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// HasCurrentEmbedding reports whether the entity has a current embedding
// under any model
func (h *EmbeddingsDBHandler) HasCurrentEmbedding(entityID uuid.UUID) (bool, error) {
	var has bool
	err := h.db.Instance.QueryRow(
		`SELECT has_current_embedding($1)`,
		entityID,
	).Scan(&has)
	if err != nil {
		return false, helper.NewError("scan", mapDatabaseError(err))
	}
	return has, nil
}

// SelectSimilarEntities ranks other entities by cosine similarity to the
// given entity's current embedding. Fails with model.ErrNotFound if the
// entity has no current embedding under the model.
func (h *EmbeddingsDBHandler) SelectSimilarEntities(entityID uuid.UUID, modelID uuid.UUID, threshold float64, limit int) ([]*model.SimilarityResult, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_similar_entities($1, $2, $3, $4)`,
		entityID,
		modelID,
		threshold,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var results []*model.SimilarityResult
	for rows.Next() {
		entity := &model.Entity{}
		result := &model.SimilarityResult{Entity: entity}
		err := rows.Scan(
			&entity.ID,
			&entity.Type,
			&entity.CanonicalName,
			&entity.SourceTable,
			&entity.SourceID,
			pq.Array(&entity.Aliases),
			pq.Array(&entity.Tags),
			&entity.Status,
			&entity.QualityScore,
			&entity.Attributes,
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&result.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", mapDatabaseError(err))
	}

	return results, nil
}

// SelectCurrentEmbeddings returns up to limit current embeddings for a model,
// ordered by entity id. Used by the linear-scan similarity fallback.
func (h *EmbeddingsDBHandler) SelectCurrentEmbeddings(modelID uuid.UUID, limit int) ([]*model.EmbeddingRecord, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_current_embeddings($1, $2)`,
		modelID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var records []*model.EmbeddingRecord
	for rows.Next() {
		record := &model.EmbeddingRecord{ModelID: modelID, IsCurrent: true}
		var vector pgvector.Vector
		err := rows.Scan(
			&record.EntityID,
			&vector,
			&record.Version,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		record.Vector = vector.Slice()
		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return records, nil
}

// CountCurrentEmbeddings counts the current embeddings stored under a model
func (h *EmbeddingsDBHandler) CountCurrentEmbeddings(modelID uuid.UUID) (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(
		`SELECT count_current_embeddings($1)`,
		modelID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", mapDatabaseError(err))
	}
	return count, nil
}

func scanEmbedding(row rowScanner, record *model.EmbeddingRecord) error {
	var vector pgvector.Vector
	err := row.Scan(
		&record.ID,
		&record.EntityID,
		&record.ModelID,
		&vector,
		&record.EmbeddingText,
		&record.Version,
		&record.IsCurrent,
		&record.CreatedAt,
	)
	if err != nil {
		return err
	}

	record.Vector = vector.Slice()
	return nil
}
