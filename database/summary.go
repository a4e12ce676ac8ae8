package database

import (
	"fmt"
	"time"

	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
	loadSql "github.com/entigraph/entigraph/sql"
	"github.com/lib/pq"
)

// SummaryDBHandlerFunctions defines the interface for summary database operations.
type SummaryDBHandlerFunctions interface {
	SelectGraphSummaries() ([]*model.GraphSummary, error)
}

// SummaryDBHandler runs the batch aggregate query behind the in-process
// summary cache. It owns no tables, only the select_graph_summaries function.
type SummaryDBHandler struct {
	db *helper.Database
}

// NewSummaryDBHandler creates a new summary database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewSummaryDBHandler(db *helper.Database, force bool) (*SummaryDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	summaryDbHandler := &SummaryDBHandler{
		db: db,
	}

	err := loadSql.LoadSummarySql(summaryDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load summary sql", err)
	}

	db.Logger.Info("Initialized SummaryDBHandler")

	return summaryDbHandler, nil
}

// SelectGraphSummaries computes per-entity degree and predicate aggregates
// for every registered entity, including isolated ones.
func (h *SummaryDBHandler) SelectGraphSummaries() ([]*model.GraphSummary, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_graph_summaries()`)
	if err != nil {
		return nil, helper.NewError("query", mapDatabaseError(err))
	}
	defer rows.Close()

	computedAt := time.Now()

	var summaries []*model.GraphSummary
	for rows.Next() {
		summary := &model.GraphSummary{ComputedAt: computedAt}
		err := rows.Scan(
			&summary.EntityID,
			&summary.CanonicalName,
			&summary.InDegree,
			&summary.OutDegree,
			pq.Array(&summary.Predicates),
			&summary.SpatialEdges,
			&summary.EngineeringEdges,
			&summary.AIGeneratedEdges,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		summaries = append(summaries, summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return summaries, nil
}
