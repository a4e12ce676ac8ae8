package database

import (
	"testing"

	"github.com/entigraph/entigraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryNewSummaryDBHandler(t *testing.T) {
	database := initDB(t)

	_, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)
	_, err = NewEdgesDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Valid call NewSummaryDBHandler", func(t *testing.T) {
		summaryDbHandler, err := NewSummaryDBHandler(database, true)
		assert.NoError(t, err, "Expected NewSummaryDBHandler to not return an error")
		require.NotNil(t, summaryDbHandler, "Expected NewSummaryDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewSummaryDBHandler with nil database", func(t *testing.T) {
		_, err := NewSummaryDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating SummaryDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestSummarySelectGraphSummaries(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)
	edgesDbHandler, err := NewEdgesDBHandler(database, true)
	require.NoError(t, err)
	summaryDbHandler, err := NewSummaryDBHandler(database, true)
	require.NoError(t, err)

	hub := newTestEntity("Distribution Hub", "equipment")
	spokeA := newTestEntity("Feeder A", "utility")
	spokeB := newTestEntity("Feeder B", "utility")
	isolated := newTestEntity("Isolated Marker", "survey_point")
	require.NoError(t, entitiesDbHandler.InsertEntity(hub))
	require.NoError(t, entitiesDbHandler.InsertEntity(spokeA))
	require.NoError(t, entitiesDbHandler.InsertEntity(spokeB))
	require.NoError(t, entitiesDbHandler.InsertEntity(isolated))

	require.NoError(t, edgesDbHandler.InsertEdge(&model.Edge{
		SubjectEntityID: hub.ID,
		ObjectEntityID:  spokeA.ID,
		Predicate:       "feeds",
		Type:            model.RelationshipTypeEngineering,
		ConfidenceScore: 0.9,
		Engineering:     true,
	}))
	require.NoError(t, edgesDbHandler.InsertEdge(&model.Edge{
		SubjectEntityID: hub.ID,
		ObjectEntityID:  spokeB.ID,
		Predicate:       "feeds",
		Type:            model.RelationshipTypeEngineering,
		ConfidenceScore: 0.9,
		Engineering:     true,
		AIGenerated:     true,
	}))
	require.NoError(t, edgesDbHandler.InsertEdge(&model.Edge{
		SubjectEntityID: spokeA.ID,
		ObjectEntityID:  hub.ID,
		Predicate:       "reports_to",
		Type:            model.RelationshipTypeSpatial,
		ConfidenceScore: 0.8,
		Spatial:         true,
	}))

	summaries, err := summaryDbHandler.SelectGraphSummaries()
	assert.NoError(t, err, "Expected SelectGraphSummaries to not return an error")

	byID := map[string]*model.GraphSummary{}
	for _, summary := range summaries {
		byID[summary.EntityID.String()] = summary
	}

	t.Run("Hub aggregates", func(t *testing.T) {
		summary, ok := byID[hub.ID.String()]
		require.True(t, ok, "Expected hub in summaries")
		assert.Equal(t, 2, summary.OutDegree, "Expected two outgoing edges")
		assert.Equal(t, 1, summary.InDegree, "Expected one incoming edge")
		assert.Equal(t, 3, summary.TotalDegree())
		assert.Equal(t, []string{"feeds", "reports_to"}, summary.Predicates, "Expected deduplicated sorted predicates")
		assert.Equal(t, 2, summary.EngineeringEdges)
		assert.Equal(t, 1, summary.SpatialEdges)
		assert.Equal(t, 1, summary.AIGeneratedEdges)
	})

	t.Run("Isolated entity included with zero degrees", func(t *testing.T) {
		summary, ok := byID[isolated.ID.String()]
		require.True(t, ok, "Expected isolated entity in summaries")
		assert.Equal(t, 0, summary.InDegree)
		assert.Equal(t, 0, summary.OutDegree)
		assert.Empty(t, summary.Predicates)
	})

	// Cleanup
	entitiesDbHandler.DeleteEntity(hub.ID)
	entitiesDbHandler.DeleteEntity(spokeA.ID)
	entitiesDbHandler.DeleteEntity(spokeB.ID)
	entitiesDbHandler.DeleteEntity(isolated.ID)
}
