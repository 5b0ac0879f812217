// internal/app/docstore/memdoc/memdoc.go

// Package memdoc implements docstore.Store in memory. It backs tests,
// fixtures, and demo mode.
//
// Documents round-trip through JSON, so the snake_case json tags on the
// domain models are the field names filters match against — the same
// names the Mongo backend uses, with the document id exposed as "id".
//
// memdoc deliberately enforces docstore.MaxInValues on OpIn filters so
// the chunking and per-value fallback paths in the stores are exercised
// against a backend that actually rejects oversized filters.
package memdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/crewtask/crewtask/internal/app/docstore"
)

// Store is an in-memory docstore.Store. The zero value is not usable;
// call New.
type Store struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{colls: make(map[string]map[string]map[string]any)}
}

// Collection returns a handle on the named collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{store: s, name: name}
}

// docs returns the named collection's documents, creating the
// collection if needed. Callers must hold the write lock.
func (s *Store) docs(name string) map[string]map[string]any {
	m, ok := s.colls[name]
	if !ok {
		m = make(map[string]map[string]any)
		s.colls[name] = m
	}
	return m
}

// view returns the named collection's documents without creating the
// collection. Callers must hold at least the read lock.
func (s *Store) view(name string) map[string]map[string]any {
	return s.colls[name]
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Get(ctx context.Context, id string, out any) error {
	// Snapshot to JSON while still holding the read lock: the stored
	// maps are mutated in place by Update/Merge under the write lock.
	c.store.mu.RLock()
	doc, ok := c.store.view(c.name)[id]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(doc)
	}
	c.store.mu.RUnlock()
	if !ok {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *collection) Set(ctx context.Context, id string, doc any) error {
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	fields["id"] = id
	c.store.mu.Lock()
	c.store.docs(c.name)[id] = fields
	c.store.mu.Unlock()
	return nil
}

func (c *collection) Merge(ctx context.Context, id string, fields map[string]any) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.docs(c.name)
	doc, ok := docs[id]
	if !ok {
		doc = map[string]any{"id": id}
		docs[id] = doc
	}
	for k, v := range normalize(fields) {
		doc[k] = v
	}
	return nil
}

func (c *collection) Update(ctx context.Context, id string, fields map[string]any) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	doc, ok := c.store.docs(c.name)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	for k, v := range normalize(fields) {
		doc[k] = v
	}
	return nil
}

func (c *collection) Query(ctx context.Context, out any, filters ...docstore.Filter) error {
	for _, f := range filters {
		if f.Op == docstore.OpIn {
			if vs, ok := f.Value.([]string); ok && len(vs) > docstore.MaxInValues {
				return fmt.Errorf("%w: in filter limited to %d values", docstore.ErrUnsupportedFilter, docstore.MaxInValues)
			}
		}
	}
	c.store.mu.RLock()
	docs := c.store.view(c.name)
	var matched []map[string]any
	for _, id := range sortedIDs(docs) {
		if matchesAll(docs[id], filters) {
			matched = append(matched, docs[id])
		}
	}
	raw, err := marshalDocs(matched)
	c.store.mu.RUnlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *collection) List(ctx context.Context, out any) error {
	c.store.mu.RLock()
	docs := c.store.view(c.name)
	var all []map[string]any
	for _, id := range sortedIDs(docs) {
		all = append(all, docs[id])
	}
	raw, err := marshalDocs(all)
	c.store.mu.RUnlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *collection) NewID() string {
	return uuid.NewString()
}

func sortedIDs(docs map[string]map[string]any) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matchesAll(doc map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !matches(doc, f) {
			return false
		}
	}
	return true
}

func matches(doc map[string]any, f docstore.Filter) bool {
	got, ok := doc[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case docstore.OpEqual:
		return equalJSON(got, f.Value)
	case docstore.OpIn:
		vs, ok := f.Value.([]string)
		if !ok {
			return false
		}
		for _, v := range vs {
			if equalJSON(got, v) {
				return true
			}
		}
		return false
	case docstore.OpArrayContains:
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, el := range arr {
			if equalJSON(el, f.Value) {
				return true
			}
		}
		return false
	}
	return false
}

// equalJSON compares a stored (JSON-normalized) value against a filter
// value by normalizing both through JSON.
func equalJSON(stored, want any) bool {
	a, err1 := json.Marshal(stored)
	b, err2 := json.Marshal(want)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(a) == string(b)
}

func toFields(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// normalize JSON-round-trips a field map so stored values always carry
// JSON-native types, whatever Go types the caller used.
func normalize(fields map[string]any) map[string]any {
	out, err := toFields(fields)
	if err != nil {
		return fields
	}
	return out
}

// marshalDocs snapshots matched documents to JSON. Callers invoke it
// while holding the read lock so writers cannot mutate the maps
// mid-marshal.
func marshalDocs(docs []map[string]any) ([]byte, error) {
	if docs == nil {
		docs = []map[string]any{}
	}
	return json.Marshal(docs)
}
