package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/entigraph/entigraph/model"
	"github.com/lib/pq"
)

// mapDatabaseError translates low-level postgres errors into the typed
// error taxonomy so callers can branch with errors.Is.
func mapDatabaseError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "23505": // unique_violation
		switch pqErr.Constraint {
		case "entities_source_ref_key":
			return fmt.Errorf("%w: %s", model.ErrDuplicateSourceRef, pqErr.Detail)
		case "edges_triple_key":
			return fmt.Errorf("%w: %s", model.ErrDuplicateEdge, pqErr.Detail)
		default:
			return fmt.Errorf("%w: %s", model.ErrConflict, pqErr.Detail)
		}
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", model.ErrUnknownEntity, pqErr.Detail)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", model.ErrValidation, pqErr.Message)
	case "40001": // serialization_failure, retryable
		return fmt.Errorf("%w: %s", model.ErrConflict, pqErr.Message)
	case "P0002": // no_data_found
		return fmt.Errorf("%w: %s", model.ErrNotFound, pqErr.Message)
	}

	return err
}
