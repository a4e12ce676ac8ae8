package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	config := DefaultConfig()

	t.Run("Full completeness with both signals reaches 1", func(t *testing.T) {
		score := Score(config, 5, 5, true, true)
		assert.Equal(t, 1.0, score, "Expected full completeness plus both bonuses to cap at 1")
	})

	t.Run("No attributes uses baseline", func(t *testing.T) {
		score := Score(config, 0, 0, false, false)
		assert.Equal(t, 0.7, score, "Expected fixed baseline for entities without attributes")
	})

	t.Run("Partial completeness", func(t *testing.T) {
		score := Score(config, 1, 2, false, false)
		assert.Equal(t, 0.35, score)
	})

	t.Run("Bonuses are additive and independent", func(t *testing.T) {
		base := Score(config, 1, 2, false, false)
		withEmbedding := Score(config, 1, 2, true, false)
		withRelationships := Score(config, 1, 2, false, true)
		withBoth := Score(config, 1, 2, true, true)

		assert.Equal(t, base+0.15, withEmbedding)
		assert.Equal(t, base+0.15, withRelationships)
		assert.Equal(t, base+0.3, withBoth)
	})

	t.Run("Empty attributes with both signals caps at 1", func(t *testing.T) {
		score := Score(config, 0, 0, true, true)
		assert.Equal(t, 1.0, score, "Expected 0.7 + 0.3 to cap at 1")
	})

	t.Run("Result stays in range for all inputs", func(t *testing.T) {
		for filled := 0; filled <= 10; filled++ {
			for total := 0; total <= 10; total++ {
				for _, hasEmbedding := range []bool{false, true} {
					for _, hasRelationships := range []bool{false, true} {
						score := Score(config, filled, total, hasEmbedding, hasRelationships)
						assert.GreaterOrEqual(t, score, 0.0)
						assert.LessOrEqual(t, score, 1.0)
					}
				}
			}
		}
	})

	t.Run("Rounded to three decimals", func(t *testing.T) {
		score := Score(config, 1, 3, false, false)
		assert.Equal(t, 0.233, score, "Expected 0.7/3 rounded to three decimals")
	})

	t.Run("Custom weights", func(t *testing.T) {
		custom := Config{CompletenessWeight: 0.5, SignalBonus: 0.25}
		score := Score(custom, 2, 2, true, true)
		assert.Equal(t, 1.0, score)

		score = Score(custom, 0, 0, true, false)
		assert.Equal(t, 0.75, score)
	})
}
