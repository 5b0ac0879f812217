// internal/app/docstore/docstore.go

// Package docstore defines the logical document-database operations the
// core consumes: collection-scoped get/set/update, filtered queries,
// full listing, and auto-id generation. Backends (Mongo in production,
// an in-memory store in tests and demo mode) implement Store; everything
// above this package is backend-agnostic.
package docstore

import "context"

// Op is a query filter operator.
type Op string

const (
	// OpEqual matches documents whose field equals the value.
	OpEqual Op = "=="
	// OpIn matches documents whose field equals any of the values.
	// Backends may cap the number of values (see MaxInValues).
	OpIn Op = "in"
	// OpArrayContains matches documents whose array field contains the
	// value.
	OpArrayContains Op = "array-contains"
)

// FieldID is the canonical filter name for the document id. Backends
// translate it to their native id field.
const FieldID = "id"

// MaxInValues is the largest value set an OpIn filter is guaranteed to
// accept across backends. Callers with more values must chunk; backends
// that reject even a conforming OpIn return ErrUnsupportedFilter so the
// caller can fall back to per-value queries.
const MaxInValues = 10

// Filter is one query predicate. Filters combine with AND.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// In builds a set-membership filter.
func In(field string, values []string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}

// ArrayContains builds an array-membership filter.
func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Store is a handle on the backing document database.
type Store interface {
	// Collection returns a handle on the named collection. Collections
	// spring into existence on first write.
	Collection(name string) Collection
}

// Collection is a handle on one logical collection.
//
// Decode targets follow the usual pattern: Get decodes into a struct
// pointer; Query and List decode into a pointer to a slice of structs.
type Collection interface {
	// Get fetches the document with the given id. Returns ErrNotFound
	// if no such document exists.
	Get(ctx context.Context, id string, out any) error

	// Set writes the full document under id, creating or replacing it.
	Set(ctx context.Context, id string, doc any) error

	// Merge writes only the given fields into the document under id,
	// creating the document if it does not exist. This is the
	// merge-write used by reconciliation retries.
	Merge(ctx context.Context, id string, fields map[string]any) error

	// Update writes only the given fields into an existing document.
	// Returns ErrNotFound if the document does not exist.
	Update(ctx context.Context, id string, fields map[string]any) error

	// Query decodes all documents matching every filter into out. An
	// OpIn filter the backend cannot serve yields ErrUnsupportedFilter
	// with no partial results.
	Query(ctx context.Context, out any, filters ...Filter) error

	// List decodes every document in the collection into out.
	List(ctx context.Context, out any) error

	// NewID returns a fresh document id. It does not reserve the id;
	// the caller writes it with Set.
	NewID() string
}
