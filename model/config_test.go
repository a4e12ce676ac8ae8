package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultQueryConfig(t *testing.T) {
	config := DefaultQueryConfig()

	t.Run("Result shaping defaults", func(t *testing.T) {
		assert.Equal(t, 10, config.MaxResults)
		assert.Equal(t, 0.0, config.SimilarityThreshold)
		assert.Equal(t, 0.0, config.MinQuality)
	})

	t.Run("Traversal defaults", func(t *testing.T) {
		assert.Equal(t, 2, config.MaxHops)
		assert.Equal(t, 10000, config.MaxVisited)
		assert.Nil(t, config.EdgeTypes, "Expected no edge type filter by default")
		assert.Equal(t, 0.0, config.MinConfidence)
	})

	t.Run("Ranking weights sum to one", func(t *testing.T) {
		assert.Equal(t, 0.3, config.TextWeight)
		assert.Equal(t, 0.5, config.VectorWeight)
		assert.Equal(t, 0.2, config.QualityWeight)
		assert.InDelta(t, 1.0, config.TextWeight+config.VectorWeight+config.QualityWeight, 1e-9)
	})

	t.Run("Linear scan fallback default", func(t *testing.T) {
		assert.Equal(t, 5000, config.LinearScanLimit)
	})
}

func TestDefaultTextZoneWeights(t *testing.T) {
	zones := DefaultTextZoneWeights()

	assert.Equal(t, "A", zones.Name, "Expected name and aliases in the highest zone")
	assert.Equal(t, "B", zones.Description)
	assert.Equal(t, "C", zones.Tags)
}
