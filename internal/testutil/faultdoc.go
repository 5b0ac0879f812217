package testutil

import (
	"context"

	"github.com/crewtask/crewtask/internal/app/docstore"
)

// FaultStore wraps a docstore.Store and injects errors in front of
// reads, so tests can drive the error-handling and fallback paths the
// real backends only hit under load. Writes always pass through.
//
// The hook fields are consulted on every call when non-nil; a non-nil
// return is handed to the caller instead of running the wrapped
// operation. Set hooks before sharing the store across goroutines.
type FaultStore struct {
	Inner docstore.Store

	// GetErr runs before every Get.
	GetErr func(coll, id string) error
	// QueryErr runs before every Query.
	QueryErr func(coll string, filters []docstore.Filter) error
}

func (s *FaultStore) Collection(name string) docstore.Collection {
	return &faultCollection{inner: s.Inner.Collection(name), store: s, name: name}
}

type faultCollection struct {
	inner docstore.Collection
	store *FaultStore
	name  string
}

func (c *faultCollection) Get(ctx context.Context, id string, out any) error {
	if fn := c.store.GetErr; fn != nil {
		if err := fn(c.name, id); err != nil {
			return err
		}
	}
	return c.inner.Get(ctx, id, out)
}

func (c *faultCollection) Query(ctx context.Context, out any, filters ...docstore.Filter) error {
	if fn := c.store.QueryErr; fn != nil {
		if err := fn(c.name, filters); err != nil {
			return err
		}
	}
	return c.inner.Query(ctx, out, filters...)
}

func (c *faultCollection) Set(ctx context.Context, id string, doc any) error {
	return c.inner.Set(ctx, id, doc)
}

func (c *faultCollection) Merge(ctx context.Context, id string, fields map[string]any) error {
	return c.inner.Merge(ctx, id, fields)
}

func (c *faultCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	return c.inner.Update(ctx, id, fields)
}

func (c *faultCollection) List(ctx context.Context, out any) error {
	return c.inner.List(ctx, out)
}

func (c *faultCollection) NewID() string {
	return c.inner.NewID()
}

// RejectIn is a QueryErr hook rejecting every set-membership filter
// with docstore.ErrUnsupportedFilter, forcing callers onto their
// per-value fallback paths.
func RejectIn(coll string, filters []docstore.Filter) error {
	for _, f := range filters {
		if f.Op == docstore.OpIn {
			return docstore.ErrUnsupportedFilter
		}
	}
	return nil
}

// RejectArrayContains is a QueryErr hook rejecting every
// array-membership filter with docstore.ErrUnsupportedFilter.
func RejectArrayContains(coll string, filters []docstore.Filter) error {
	for _, f := range filters {
		if f.Op == docstore.OpArrayContains {
			return docstore.ErrUnsupportedFilter
		}
	}
	return nil
}
