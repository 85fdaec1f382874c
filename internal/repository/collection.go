package repository

import (
	"context"
	"fmt"

	"webstack/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Database binds a command client to the logical account its collections live in.
type Database struct {
	Client  *database.Client
	Account string
}

func NewDatabase(client *database.Client, account string) *Database {
	return &Database{Client: client, Account: account}
}

type sequenceSetter interface {
	SetSequenceID(id int64)
}

// Collection maps documents of one named collection onto T.
type Collection[T any, PT interface {
	*T
	database.Document
}] struct {
	db   *Database
	name string
}

func NewCollection[T any, PT interface {
	*T
	database.Document
}](db *Database, name string) *Collection[T, PT] {
	return &Collection[T, PT]{db: db, name: name}
}

func (c *Collection[T, PT]) Name() string {
	return c.name
}

func (c *Collection[T, PT]) CreateOne() PT {
	return PT(new(T))
}

func (c *Collection[T, PT]) NextSequenceID(ctx context.Context, sparse bool) (int64, error) {
	if sparse {
		return c.db.Client.NextSparseID(ctx, c.db.Account, c.name)
	}
	return c.db.Client.NextSequenceID(ctx, c.db.Account, c.name)
}

// CreateOneWithSequenceID returns a new unsaved document carrying the next sequence id.
func (c *Collection[T, PT]) CreateOneWithSequenceID(ctx context.Context, sparse bool) (PT, error) {
	doc := c.CreateOne()
	setter, ok := any(doc).(sequenceSetter)
	if !ok {
		return nil, fmt.Errorf("%s documents have no sequence id", c.name)
	}
	id, err := c.NextSequenceID(ctx, sparse)
	if err != nil {
		return nil, err
	}
	setter.SetSequenceID(id)
	return doc, nil
}

func (c *Collection[T, PT]) InsertOne(ctx context.Context, doc PT) (PT, error) {
	stored, err := c.db.Client.InsertOne(ctx, c.db.Account, c.name, doc)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	return c.wrapDocument(stored)
}

func (c *Collection[T, PT]) InsertMany(ctx context.Context, docs []PT) ([]PT, error) {
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	stored, err := c.db.Client.InsertMany(ctx, c.db.Account, c.name, batch)
	if err != nil {
		return nil, err
	}
	out := make([]PT, 0, len(stored))
	for _, d := range stored {
		w, err := c.wrapDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// UpsertOne replaces the document with doc's _id, inserting it when absent.
// A missing _id is generated and written back to doc.
func (c *Collection[T, PT]) UpsertOne(ctx context.Context, doc PT) (PT, error) {
	if doc.DocumentID().IsZero() {
		doc.SetDocumentID(database.NewID())
	}
	replacement, err := withoutID(doc)
	if err != nil {
		return nil, err
	}
	return c.modify(ctx, byID(doc.DocumentID()), database.ModifyOptions{Update: replacement, Upsert: true})
}

func (c *Collection[T, PT]) UpdateOneByID(ctx context.Context, id string, doc PT) (PT, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c.name, err)
	}
	replacement, err := withoutID(doc)
	if err != nil {
		return nil, err
	}
	return c.modify(ctx, byID(oid), database.ModifyOptions{Update: replacement})
}

func (c *Collection[T, PT]) UpdateOne(ctx context.Context, doc PT) (PT, error) {
	if doc.DocumentID().IsZero() {
		return nil, fmt.Errorf("update %s: %w", c.name, database.ErrMissingID)
	}
	replacement, err := withoutID(doc)
	if err != nil {
		return nil, err
	}
	return c.modify(ctx, byID(doc.DocumentID()), database.ModifyOptions{Update: replacement})
}

func (c *Collection[T, PT]) FindAndUpsert(ctx context.Context, filter, update, fields, sort any) (PT, error) {
	return c.modify(ctx, filter, database.ModifyOptions{Update: update, Fields: fields, Sort: sort, Upsert: true})
}

func (c *Collection[T, PT]) FindAndUpdate(ctx context.Context, filter, update, fields, sort any) (PT, error) {
	return c.modify(ctx, filter, database.ModifyOptions{Update: update, Fields: fields, Sort: sort})
}

func (c *Collection[T, PT]) FindOneByID(ctx context.Context, id string, projection any) (PT, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.name, err)
	}
	return c.FindOne(ctx, byID(oid), projection)
}

func (c *Collection[T, PT]) FindOne(ctx context.Context, filter, projection any) (PT, error) {
	raw, err := c.db.Client.FindOne(ctx, c.db.Account, c.name, filter, projection)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return c.wrap(raw, false)
}

func (c *Collection[T, PT]) Find(ctx context.Context, opts database.FindOptions) (*database.Page[PT], error) {
	batch, err := c.db.Client.Find(ctx, c.db.Account, c.name, opts)
	if err != nil {
		return nil, err
	}
	return c.wrapBatch(batch)
}

func (c *Collection[T, PT]) Aggregation(ctx context.Context, q database.AggregationQuery) (*database.Page[PT], error) {
	batch, err := c.db.Client.Aggregation(ctx, c.db.Account, c.name, q)
	if err != nil {
		return nil, err
	}
	return c.wrapBatch(batch)
}

func (c *Collection[T, PT]) DeleteOneByID(ctx context.Context, id string) (PT, error) {
	oid, err := database.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", c.name, err)
	}
	return c.DeleteOne(ctx, byID(oid))
}

// DeleteOne removes the first match and returns it as it was stored.
func (c *Collection[T, PT]) DeleteOne(ctx context.Context, filter any) (PT, error) {
	return c.modify(ctx, filter, database.ModifyOptions{Remove: true})
}

func (c *Collection[T, PT]) modify(ctx context.Context, filter any, opts database.ModifyOptions) (PT, error) {
	mod, err := c.db.Client.FindAndModify(ctx, c.db.Account, c.name, filter, opts)
	if err != nil {
		return nil, err
	}
	if mod == nil {
		return nil, nil
	}
	return c.wrap(mod.Document, mod.UpdatedExisting)
}

func (c *Collection[T, PT]) wrap(raw bson.Raw, existing bool) (PT, error) {
	doc := PT(new(T))
	if err := bson.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", c.name, err)
	}
	doc.MarkUpdatedExisting(existing)
	return doc, nil
}

func (c *Collection[T, PT]) wrapDocument(d bson.D) (PT, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", c.name, err)
	}
	return c.wrap(raw, false)
}

func (c *Collection[T, PT]) wrapBatch(batch *database.Batch) (*database.Page[PT], error) {
	page := &database.Page[PT]{Items: make([]PT, 0, len(batch.Documents)), Total: batch.Total}
	for _, raw := range batch.Documents {
		doc, err := c.wrap(raw, false)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, doc)
	}
	return page, nil
}

func byID(id primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func withoutID(doc any) (bson.D, error) {
	d, err := database.ToDocument(doc)
	if err != nil {
		return nil, err
	}
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out, nil
}
