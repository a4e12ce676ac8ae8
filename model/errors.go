package model

import "errors"

// Error taxonomy. Handlers map low-level database errors onto these
// sentinels so callers can branch with errors.Is regardless of backend.
var (
	// ErrValidation covers malformed input rejected at the boundary
	ErrValidation = errors.New("validation error")
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the model's dimensions
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNonFiniteVector is returned for vectors containing NaN or Inf
	ErrNonFiniteVector = errors.New("vector contains non-finite values")
	// ErrNotFound is returned for unknown entities, models or edges
	ErrNotFound = errors.New("not found")
	// ErrUnknownEntity is returned when an edge endpoint does not exist
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrDuplicateSourceRef is returned when (source_table, source_id)
	// is already registered
	ErrDuplicateSourceRef = errors.New("duplicate source reference")
	// ErrDuplicateEdge is returned when (subject, predicate, object)
	// already exists
	ErrDuplicateEdge = errors.New("duplicate edge")
	// ErrConflict is returned when a concurrent current-embedding flip
	// lost the race after bounded retries
	ErrConflict = errors.New("write conflict")
	// ErrCapacityExceeded is returned when a traversal or candidate set
	// exceeds its configured bound
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
