package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// EmbeddingRecord represents one version of an entity's embedding under a
// specific model. Records are append-only; superseding a record flips the
// prior current row off and inserts a new current row in one transaction.
type EmbeddingRecord struct {
	ID            uuid.UUID `json:"id"`
	EntityID      uuid.UUID `json:"entity_id"`
	ModelID       uuid.UUID `json:"model_id"`
	Vector        []float32 `json:"vector,omitempty"`
	EmbeddingText string    `json:"embedding_text,omitempty"`
	Version       int       `json:"version"` // Monotonic per (entity, model)
	IsCurrent     bool      `json:"is_current"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidateVector checks a vector against the model dimensions before it ever
// reaches storage. Non-finite values and dimension mismatches are rejected at
// the boundary, never persisted.
func ValidateVector(vector []float32, dimensions int) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrValidation)
	}
	if len(vector) != dimensions {
		return fmt.Errorf("%w: got %d values, model expects %d", ErrDimensionMismatch, len(vector), dimensions)
	}
	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrNonFiniteVector, i)
		}
	}
	return nil
}
