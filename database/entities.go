package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
	loadSql "github.com/entigraph/entigraph/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(entity *model.Entity) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectEntityBySourceRef(sourceTable string, sourceID string) (*model.Entity, error)
	SelectEntitiesByType(entityType string, limit int) ([]*model.Entity, error)
	ResolveAlias(name string, limit int) ([]*model.AliasMatch, error)
	UpdateEntityAttributes(entity *model.Entity) error
	UpdateEntityQuality(id uuid.UUID, score float64) error
	UpdateEntityStatus(id uuid.UUID, status model.EntityStatus) error
	DeleteEntity(id uuid.UUID) error
	SearchHybrid(queryText string, queryVector []float32, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SearchResult, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db    *helper.Database
	zones model.TextZoneWeights
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db:    db,
		zones: model.DefaultTextZoneWeights(),
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntity registers a new entity. The indexed search text is derived
// from the entity's weighted text zones as part of the insert, not a trigger.
// Fails with model.ErrDuplicateSourceRef if (source_table, source_id) is
// already registered.
func (h *EntitiesDBHandler) InsertEntity(entity *model.Entity) error {
	if strings.TrimSpace(entity.CanonicalName) == "" {
		return helper.NewError("validate entity", fmt.Errorf("%w: canonical name is empty", model.ErrValidation))
	}
	if strings.TrimSpace(entity.SourceTable) == "" || strings.TrimSpace(entity.SourceID) == "" {
		return helper.NewError("validate entity", fmt.Errorf("%w: source reference is empty", model.ErrValidation))
	}

	nameText, descriptionText, tagsText := entity.SearchText()

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entity.Type,
		entity.CanonicalName,
		entity.SourceTable,
		entity.SourceID,
		pq.Array(entity.Aliases),
		pq.Array(entity.Tags),
		entity.Attributes,
		entity.QualityScore,
		nameText,
		descriptionText,
		tagsText,
		h.zones.Name,
		h.zones.Description,
		h.zones.Tags,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", mapDatabaseError(err))
	}

	return nil
}

// SelectEntity retrieves an entity by ID
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return entity, nil
}

// SelectEntityBySourceRef retrieves an entity by its owning domain record
func (h *EntitiesDBHandler) SelectEntityBySourceRef(sourceTable string, sourceID string) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity_by_source_ref($1, $2)`,
		sourceTable,
		sourceID,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return entity, nil
}

// SelectEntitiesByType retrieves entities by type
func (h *EntitiesDBHandler) SelectEntitiesByType(entityType string, limit int) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities_by_type($1, $2)`,
		entityType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// ResolveAlias returns ranked entity candidates for a name, exact canonical
// matches first, then alias matches with earlier aliases ranked higher
func (h *EntitiesDBHandler) ResolveAlias(name string, limit int) ([]*model.AliasMatch, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM resolve_alias($1, $2)`,
		name,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var matches []*model.AliasMatch
	for rows.Next() {
		match := &model.AliasMatch{}
		err := rows.Scan(
			&match.EntityID,
			&match.CanonicalName,
			&match.IsCanonical,
			&match.Confidence,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		matches = append(matches, match)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return matches, nil
}

// UpdateEntityAttributes persists the entity's aliases, tags and attributes
// and re-derives the weighted search text in the same statement. The passed
// entity must carry the fully merged state.
func (h *EntitiesDBHandler) UpdateEntityAttributes(entity *model.Entity) error {
	nameText, descriptionText, tagsText := entity.SearchText()

	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_entity_attributes($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entity.ID,
		pq.Array(entity.Aliases),
		pq.Array(entity.Tags),
		entity.Attributes,
		nameText,
		descriptionText,
		tagsText,
		h.zones.Name,
		h.zones.Description,
		h.zones.Tags,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", mapDatabaseError(err))
	}

	return nil
}

// UpdateEntityQuality stores a recomputed quality score. Scores are always
// derived by the quality scorer, never hand-set by callers.
func (h *EntitiesDBHandler) UpdateEntityQuality(id uuid.UUID, score float64) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_entity_quality($1, $2)`,
		id,
		score,
	)
	if err != nil {
		return helper.NewError("exec", mapDatabaseError(err))
	}
	return nil
}

// UpdateEntityStatus updates the lifecycle status of an entity
func (h *EntitiesDBHandler) UpdateEntityStatus(id uuid.UUID, status model.EntityStatus) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_entity_status($1, $2)`,
		id,
		string(status),
	)
	if err != nil {
		return helper.NewError("exec", mapDatabaseError(err))
	}
	return nil
}

// DeleteEntity deletes an entity by ID. Graph edges cascade-delete with
// either endpoint; embeddings are removed with the entity.
func (h *EntitiesDBHandler) DeleteEntity(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", mapDatabaseError(err))
	}
	return nil
}

// SearchHybrid ranks entities by the weighted combination of lexical rank,
// vector similarity and quality score. Inclusion requires a lexical match or
// a current embedding; the weights come from the caller's config.
func (h *EntitiesDBHandler) SearchHybrid(queryText string, queryVector []float32, modelID uuid.UUID, config *model.QueryConfig) ([]*model.SearchResult, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	var vectorParam interface{}
	if len(queryVector) > 0 {
		vectorParam = pgvector.NewVector(queryVector)
	}

	var typesParam interface{}
	if len(config.EntityTypes) > 0 {
		typesParam = pq.Array(config.EntityTypes)
	}

	var modelParam interface{}
	if modelID != uuid.Nil {
		modelParam = modelID
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM search_entities_hybrid($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		queryText,
		vectorParam,
		modelParam,
		typesParam,
		config.MinQuality,
		config.MaxResults,
		config.TextWeight,
		config.VectorWeight,
		config.QualityWeight,
	)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		entity := &model.Entity{}
		result := &model.SearchResult{Entity: entity, RetrievalMethod: "hybrid"}
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
			&result.TextRank,
			&result.VectorSimilarity,
			&result.Score,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		result.QualityScore = entity.QualityScore
		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	return row.Scan(
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
	)
}
