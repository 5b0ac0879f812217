// internal/app/docstore/errors.go
package docstore

import "errors"

var (
	// ErrNotFound is returned when a referenced document id does not
	// exist in the collection.
	ErrNotFound = errors.New("document not found")

	// ErrUnsupportedFilter is returned when a backend rejects a query
	// filter (typically an OpIn with too many values). Callers fall
	// back to slower per-value queries rather than failing outright.
	ErrUnsupportedFilter = errors.New("unsupported query filter")
)
