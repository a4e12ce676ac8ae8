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
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	InsertEdge(edge *model.Edge) error
	SelectEdge(id uuid.UUID) (*model.Edge, error)
	SelectEdgesFromEntity(entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error)
	SelectEdgesToEntity(entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error)
	UpdateEdgeConfidence(id uuid.UUID, confidenceScore float64, attributes model.Metadata) (*model.Edge, error)
	DeleteEdge(id uuid.UUID) error
	CountEdgesForEntity(entityID uuid.UUID) (int64, error)
}

// EdgesDBHandler handles edge-related database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads edge-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// InsertEdge asserts a directed relationship between two registered entities.
// The (subject, predicate, object) triple is unique; re-asserting it fails
// with model.ErrDuplicateEdge, and unknown endpoints fail with
// model.ErrUnknownEntity.
func (h *EdgesDBHandler) InsertEdge(edge *model.Edge) error {
	if strings.TrimSpace(edge.Predicate) == "" {
		return helper.NewError("validate edge", fmt.Errorf("%w: predicate is empty", model.ErrValidation))
	}
	if edge.ConfidenceScore < 0 || edge.ConfidenceScore > 1 {
		return helper.NewError("validate edge", fmt.Errorf("%w: confidence score %v outside [0, 1]", model.ErrValidation, edge.ConfidenceScore))
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_edge($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		edge.SubjectEntityID,
		edge.Predicate,
		edge.ObjectEntityID,
		string(edge.Type),
		edge.ConfidenceScore,
		edge.Spatial,
		edge.Engineering,
		edge.AIGenerated,
		edge.Attributes,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return helper.NewError("scan", mapDatabaseError(err))
	}

	return nil
}

// SelectEdge retrieves an edge by ID
func (h *EdgesDBHandler) SelectEdge(id uuid.UUID) (*model.Edge, error) {
	edge := &model.Edge{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_edge($1)`,
		id,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return edge, nil
}

// SelectEdgesFromEntity retrieves outgoing edges of an entity, optionally
// filtered by relationship type. An empty type matches all edges.
func (h *EdgesDBHandler) SelectEdgesFromEntity(entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error) {
	return h.selectEdges(`SELECT * FROM select_edges_from_entity($1, $2)`, entityID, relationshipType)
}

// SelectEdgesToEntity retrieves incoming edges of an entity, optionally
// filtered by relationship type. An empty type matches all edges.
func (h *EdgesDBHandler) SelectEdgesToEntity(entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error) {
	return h.selectEdges(`SELECT * FROM select_edges_to_entity($1, $2)`, entityID, relationshipType)
}

func (h *EdgesDBHandler) selectEdges(query string, entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error) {
	var typeParam interface{}
	if relationshipType != "" {
		typeParam = string(relationshipType)
	}

	rows, err := h.db.Instance.Query(query, entityID, typeParam)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge := &model.Edge{}
		err := scanEdge(rows, edge)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// UpdateEdgeConfidence updates the confidence score of an edge and optionally
// replaces its attributes. Nil attributes keep the prior attributes.
func (h *EdgesDBHandler) UpdateEdgeConfidence(id uuid.UUID, confidenceScore float64, attributes model.Metadata) (*model.Edge, error) {
	if confidenceScore < 0 || confidenceScore > 1 {
		return nil, helper.NewError("validate edge", fmt.Errorf("%w: confidence score %v outside [0, 1]", model.ErrValidation, confidenceScore))
	}

	var attributesParam interface{}
	if attributes != nil {
		attributesParam = attributes
	}

	edge := &model.Edge{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_edge_confidence($1, $2, $3)`,
		id,
		confidenceScore,
		attributesParam,
	)

	err := scanEdge(row, edge)
	if err != nil {
		return nil, helper.NewError("scan", mapDatabaseError(err))
	}

	return edge, nil
}

// DeleteEdge deletes an edge by ID
func (h *EdgesDBHandler) DeleteEdge(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_edge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", mapDatabaseError(err))
	}
	return nil
}

// CountEdgesForEntity counts the edges touching an entity as subject or
// object. Feeds the relationship bonus of the quality scorer.
func (h *EdgesDBHandler) CountEdgesForEntity(entityID uuid.UUID) (int64, error) {
	var count int64
	err := h.db.Instance.QueryRow(
		`SELECT count_edges_for_entity($1)`,
		entityID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", mapDatabaseError(err))
	}
	return count, nil
}

func scanEdge(row rowScanner, edge *model.Edge) error {
	var relationshipType string
	err := row.Scan(
		&edge.ID,
		&edge.SubjectEntityID,
		&edge.Predicate,
		&edge.ObjectEntityID,
		&relationshipType,
		&edge.ConfidenceScore,
		&edge.Spatial,
		&edge.Engineering,
		&edge.AIGenerated,
		&edge.Attributes,
		&edge.CreatedAt,
	)
	if err != nil {
		return err
	}

	edge.Type = model.RelationshipType(relationshipType)
	return nil
}
