// Package scoring computes entity quality scores from completeness and
// connectivity signals. The scorer is pure; persistence of the result is the
// caller's concern.
package scoring

import "math"

// Default scoring weights. Empirical policy constants, tunable per
// deployment via Config.
const (
	DefaultCompletenessWeight = 0.7
	DefaultSignalBonus        = 0.15
)

// Config holds the quality score weights
type Config struct {
	// CompletenessWeight scales the filled/total attribute ratio. It also
	// serves as the fixed baseline for entities without attributes.
	CompletenessWeight float64
	// SignalBonus is added once per true signal (embedding, relationships)
	SignalBonus float64
}

// DefaultConfig returns the default quality score weights
func DefaultConfig() Config {
	return Config{
		CompletenessWeight: DefaultCompletenessWeight,
		SignalBonus:        DefaultSignalBonus,
	}
}

// Score computes a quality score in [0, 1] from attribute completeness and
// the embedding/relationship signals:
//   - completeness = filled/total * CompletenessWeight, or the weight itself
//     as baseline when the entity has no attributes
//   - each true signal adds SignalBonus independently
//
// The result is capped at 1, clamped to [0, 1] and rounded to 3 decimals so
// stored scores compare stably.
func Score(config Config, filled int, total int, hasEmbedding bool, hasRelationships bool) float64 {
	completeness := config.CompletenessWeight
	if total > 0 {
		ratio := float64(filled) / float64(total)
		completeness = ratio * config.CompletenessWeight
	}

	bonus := 0.0
	if hasEmbedding {
		bonus += config.SignalBonus
	}
	if hasRelationships {
		bonus += config.SignalBonus
	}

	result := math.Min(1.0, completeness+bonus)
	return round3(clamp01(result))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
