// internal/app/docstore/mongodoc/mongodoc.go

// Package mongodoc implements docstore.Store on MongoDB.
package mongodoc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crewtask/crewtask/internal/app/docstore"
)

// Store adapts a *mongo.Database to docstore.Store.
type Store struct {
	db *mongo.Database
}

// New wraps db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Collection returns a docstore handle on the named Mongo collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{c: s.db.Collection(name)}
}

type collection struct {
	c *mongo.Collection
}

func (c *collection) Get(ctx context.Context, id string, out any) error {
	err := c.c.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	return err
}

func (c *collection) Set(ctx context.Context, id string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	_, err := c.c.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	return err
}

func (c *collection) Merge(ctx context.Context, id string, fields map[string]any) error {
	opts := options.Update().SetUpsert(true)
	_, err := c.c.UpdateByID(ctx, id, bson.M{"$set": bson.M(fields)}, opts)
	return err
}

func (c *collection) Update(ctx context.Context, id string, fields map[string]any) error {
	res, err := c.c.UpdateByID(ctx, id, bson.M{"$set": bson.M(fields)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (c *collection) Query(ctx context.Context, out any, filters ...docstore.Filter) error {
	q := bson.M{}
	for _, f := range filters {
		field := f.Field
		if field == docstore.FieldID {
			field = "_id"
		}
		switch f.Op {
		case docstore.OpEqual:
			q[field] = f.Value
		case docstore.OpIn:
			q[field] = bson.M{"$in": f.Value}
		case docstore.OpArrayContains:
			// Mongo's equality match on an array field is containment.
			q[field] = f.Value
		default:
			return fmt.Errorf("%w: %s", docstore.ErrUnsupportedFilter, f.Op)
		}
	}
	cur, err := c.c.Find(ctx, q)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (c *collection) List(ctx context.Context, out any) error {
	cur, err := c.c.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (c *collection) NewID() string {
	return uuid.NewString()
}
