package database

import (
	"context"
	"math"
	"testing"

	"github.com/entigraph/entigraph/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, embeddingsDbHandler *EmbeddingsDBHandler) *model.EmbeddingModel {
	embeddingModel := &model.EmbeddingModel{
		Name:       "test-model-" + uuid.NewString()[:8],
		Dimensions: 3,
		Provider:   "test",
		Active:     true,
	}
	err := embeddingsDbHandler.InsertModel(embeddingModel)
	require.NoError(t, err, "Expected InsertModel to not return an error")
	return embeddingModel
}

func TestEmbeddingsNewEmbeddingsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewEmbeddingsDBHandler", func(t *testing.T) {
		embeddingsDbHandler, err := NewEmbeddingsDBHandler(database, 3, true)
		assert.NoError(t, err, "Expected NewEmbeddingsDBHandler to not return an error")
		require.NotNil(t, embeddingsDbHandler, "Expected NewEmbeddingsDBHandler to return a non-nil instance")
		require.NotNil(t, embeddingsDbHandler.db, "Expected NewEmbeddingsDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewEmbeddingsDBHandler with nil database", func(t *testing.T) {
		_, err := NewEmbeddingsDBHandler(nil, 3, false)
		assert.Error(t, err, "Expected error when creating EmbeddingsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewEmbeddingsDBHandler with non-positive dimensions", func(t *testing.T) {
		_, err := NewEmbeddingsDBHandler(database, 0, false)
		assert.Error(t, err, "Expected error when creating EmbeddingsDBHandler with zero dimensions")
	})
}

func TestEmbeddingsModelRegistry(t *testing.T) {
	database := initDB(t)

	embeddingsDbHandler, err := NewEmbeddingsDBHandler(database, 3, true)
	require.NoError(t, err)

	t.Run("Insert and select model", func(t *testing.T) {
		embeddingModel := newTestModel(t, embeddingsDbHandler)
		assert.NotEmpty(t, embeddingModel.ID, "Expected inserted model to have an ID")

		retrieved, err := embeddingsDbHandler.SelectModel(embeddingModel.ID)
		assert.NoError(t, err, "Expected SelectModel to not return an error")
		assert.Equal(t, embeddingModel.Name, retrieved.Name)
		assert.Equal(t, 3, retrieved.Dimensions)
		assert.True(t, retrieved.Active)

		byName, err := embeddingsDbHandler.SelectModelByName(embeddingModel.Name)
		assert.NoError(t, err, "Expected SelectModelByName to not return an error")
		assert.Equal(t, embeddingModel.ID, byName.ID)
	})

	t.Run("Insert model with duplicate name", func(t *testing.T) {
		embeddingModel := newTestModel(t, embeddingsDbHandler)

		duplicate := &model.EmbeddingModel{Name: embeddingModel.Name, Dimensions: 3, Active: true}
		err := embeddingsDbHandler.InsertModel(duplicate)
		assert.Error(t, err, "Expected error for duplicate model name")
		assert.ErrorIs(t, err, model.ErrConflict, "Expected conflict error")
	})

	t.Run("Insert model with mismatched dimensions", func(t *testing.T) {
		embeddingModel := &model.EmbeddingModel{Name: "wrong-dims", Dimensions: 5, Active: true}
		err := embeddingsDbHandler.InsertModel(embeddingModel)
		assert.Error(t, err, "Expected error for dimensions not matching storage")
		assert.ErrorIs(t, err, model.ErrDimensionMismatch)
	})

	t.Run("Deactivate model", func(t *testing.T) {
		embeddingModel := newTestModel(t, embeddingsDbHandler)

		err := embeddingsDbHandler.SetModelActive(embeddingModel.ID, false)
		assert.NoError(t, err, "Expected SetModelActive to not return an error")

		retrieved, err := embeddingsDbHandler.SelectModel(embeddingModel.ID)
		require.NoError(t, err)
		assert.False(t, retrieved.Active, "Expected model to be inactive")
	})
}

func TestEmbeddingsUpsert(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)
	embeddingsDbHandler, err := NewEmbeddingsDBHandler(database, 3, true)
	require.NoError(t, err)

	embeddingModel := newTestModel(t, embeddingsDbHandler)

	entity := newTestEntity("Embedded Entity", "equipment")
	err = entitiesDbHandler.InsertEntity(entity)
	require.NoError(t, err)

	t.Run("First upsert creates version 1", func(t *testing.T) {
		record, err := embeddingsDbHandler.UpsertEmbedding(entity.ID, embeddingModel.ID, []float32{1, 0, 0}, "embedded entity")
		assert.NoError(t, err, "Expected UpsertEmbedding to not return an error")
		require.NotNil(t, record)
		assert.Equal(t, 1, record.Version, "Expected first version to be 1")
		assert.True(t, record.IsCurrent, "Expected new record to be current")
		assert.Equal(t, []float32{1, 0, 0}, record.Vector, "Expected vector to round-trip")
	})

	t.Run("Second upsert supersedes version 1", func(t *testing.T) {
		record, err := embeddingsDbHandler.UpsertEmbedding(entity.ID, embeddingModel.ID, []float32{0, 1, 0}, "embedded entity v2")
		assert.NoError(t, err)
		assert.Equal(t, 2, record.Version, "Expected version to advance")

		current, err := embeddingsDbHandler.SelectCurrentEmbedding(entity.ID, embeddingModel.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Version, "Expected current to be the new version")

		versions, err := embeddingsDbHandler.SelectEmbeddingVersions(entity.ID, embeddingModel.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2, "Expected full history to be retained")
		assert.False(t, versions[0].IsCurrent, "Expected version 1 to be superseded")
		assert.True(t, versions[1].IsCurrent, "Expected version 2 to be current")
	})

	t.Run("Dimension mismatch is rejected", func(t *testing.T) {
		_, err := embeddingsDbHandler.UpsertEmbedding(entity.ID, embeddingModel.ID, []float32{1, 0}, "")
		assert.Error(t, err, "Expected error for wrong vector length")
		assert.ErrorIs(t, err, model.ErrDimensionMismatch)

		// The prior current embedding stays untouched.
		current, err := embeddingsDbHandler.SelectCurrentEmbedding(entity.ID, embeddingModel.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, current.Version, "Expected the prior current version to survive the rejected upsert")
		assert.True(t, current.IsCurrent)
		assert.Equal(t, []float32{0, 1, 0}, current.Vector, "Expected the prior vector to be unchanged")
	})

	t.Run("Non-finite values are rejected", func(t *testing.T) {
		_, err := embeddingsDbHandler.UpsertEmbedding(entity.ID, embeddingModel.ID, []float32{float32(math.NaN()), 0, 0}, "")
		assert.Error(t, err, "Expected error for NaN value")
		assert.ErrorIs(t, err, model.ErrNonFiniteVector)
	})

	t.Run("Unknown entity is rejected", func(t *testing.T) {
		_, err := embeddingsDbHandler.UpsertEmbedding(uuid.New(), embeddingModel.ID, []float32{1, 0, 0}, "")
		assert.Error(t, err, "Expected error for unknown entity")
		assert.ErrorIs(t, err, model.ErrUnknownEntity)
	})

	t.Run("Inactive model rejects new embeddings", func(t *testing.T) {
		inactiveModel := newTestModel(t, embeddingsDbHandler)
		err := embeddingsDbHandler.SetModelActive(inactiveModel.ID, false)
		require.NoError(t, err)

		_, err = embeddingsDbHandler.UpsertEmbedding(entity.ID, inactiveModel.ID, []float32{1, 0, 0}, "")
		assert.Error(t, err, "Expected error for inactive model")
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("HasCurrentEmbedding", func(t *testing.T) {
		has, err := embeddingsDbHandler.HasCurrentEmbedding(entity.ID)
		assert.NoError(t, err)
		assert.True(t, has, "Expected entity to have a current embedding")

		has, err = embeddingsDbHandler.HasCurrentEmbedding(uuid.New())
		assert.NoError(t, err)
		assert.False(t, has, "Expected unknown entity to have no embedding")
	})

	// Cleanup
	entitiesDbHandler.DeleteEntity(entity.ID)
}

func TestEmbeddingsSimilarEntities(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)
	embeddingsDbHandler, err := NewEmbeddingsDBHandler(database, 3, true)
	require.NoError(t, err)

	embeddingModel := newTestModel(t, embeddingsDbHandler)

	vectors := map[string][]float32{
		"Query Entity": {1, 0, 0},
		"Identical":    {1, 0, 0},
		"Close":        {0.9, 0.1, 0},
		"Orthogonal":   {0, 1, 0},
	}

	entities := map[string]*model.Entity{}
	for name, vector := range vectors {
		entity := newTestEntity(name, "equipment")
		err = entitiesDbHandler.InsertEntity(entity)
		require.NoError(t, err)
		_, err = embeddingsDbHandler.UpsertEmbedding(entity.ID, embeddingModel.ID, vector, name)
		require.NoError(t, err)
		entities[name] = entity
	}

	t.Run("Ranks by cosine similarity", func(t *testing.T) {
		results, err := embeddingsDbHandler.SelectSimilarEntities(entities["Query Entity"].ID, embeddingModel.ID, 0.0, 10)
		assert.NoError(t, err, "Expected SelectSimilarEntities to not return an error")
		require.Len(t, results, 3, "Expected all other embedded entities")
		assert.Equal(t, entities["Identical"].ID, results[0].Entity.ID, "Expected identical vector first")
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
		assert.Equal(t, entities["Close"].ID, results[1].Entity.ID, "Expected close vector second")
		assert.Equal(t, entities["Orthogonal"].ID, results[2].Entity.ID, "Expected orthogonal vector last")
	})

	t.Run("Threshold filters low similarity", func(t *testing.T) {
		results, err := embeddingsDbHandler.SelectSimilarEntities(entities["Query Entity"].ID, embeddingModel.ID, 0.5, 10)
		assert.NoError(t, err)
		require.Len(t, results, 2, "Expected orthogonal vector to be filtered")
	})

	t.Run("Query entity excluded from results", func(t *testing.T) {
		results, err := embeddingsDbHandler.SelectSimilarEntities(entities["Query Entity"].ID, embeddingModel.ID, 0.0, 10)
		require.NoError(t, err)
		for _, result := range results {
			assert.NotEqual(t, entities["Query Entity"].ID, result.Entity.ID, "Expected query entity to be excluded")
		}
	})

	t.Run("Missing embedding returns not found", func(t *testing.T) {
		bare := newTestEntity("No Embedding", "equipment")
		err := entitiesDbHandler.InsertEntity(bare)
		require.NoError(t, err)
		defer entitiesDbHandler.DeleteEntity(bare.ID)

		_, err = embeddingsDbHandler.SelectSimilarEntities(bare.ID, embeddingModel.ID, 0.0, 10)
		assert.Error(t, err, "Expected error for entity without embedding")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("SelectCurrentEmbeddings and count", func(t *testing.T) {
		records, err := embeddingsDbHandler.SelectCurrentEmbeddings(embeddingModel.ID, 100)
		assert.NoError(t, err)
		assert.Len(t, records, 4, "Expected one current embedding per entity")
		for _, record := range records {
			assert.Len(t, record.Vector, 3, "Expected vectors to be populated")
		}

		count, err := embeddingsDbHandler.CountCurrentEmbeddings(embeddingModel.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	// Cleanup
	for _, entity := range entities {
		entitiesDbHandler.DeleteEntity(entity.ID)
	}
}

func TestEmbeddingsChangeIndexType(t *testing.T) {
	database := initDB(t)

	embeddingsDbHandler, err := NewEmbeddingsDBHandler(database, 3, true)
	require.NoError(t, err)

	t.Run("Change to ivfflat and back", func(t *testing.T) {
		err := embeddingsDbHandler.ChangeIndexType(context.Background(), "ivfflat", map[string]interface{}{"lists": 50})
		assert.NoError(t, err, "Expected ChangeIndexType to not return an error")

		err = embeddingsDbHandler.ChangeIndexType(context.Background(), "hnsw", map[string]interface{}{"m": 16, "ef_construction": 64})
		assert.NoError(t, err, "Expected ChangeIndexType back to hnsw to not return an error")
	})

	t.Run("Unsupported index type", func(t *testing.T) {
		err := embeddingsDbHandler.ChangeIndexType(context.Background(), "btree", nil)
		assert.Error(t, err, "Expected error for unsupported index type")
		assert.Contains(t, err.Error(), "unsupported index type")
	})
}
