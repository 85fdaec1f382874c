package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type insertResult struct {
	N           int64 `bson:"n"`
	WriteErrors []struct {
		Index  int    `bson:"index"`
		Code   int    `bson:"code"`
		ErrMsg string `bson:"errmsg"`
	} `bson:"writeErrors"`
}

// InsertOne inserts doc, assigning an _id when it has none. It returns the stored
// document, or nil when the server reports nothing inserted.
func (c *Client) InsertOne(ctx context.Context, db, collection string, doc any) (bson.D, error) {
	d, err := withID(doc)
	if err != nil {
		return nil, err
	}
	res, err := c.insert(ctx, db, collection, []any{d}, true)
	if err != nil {
		return nil, err
	}
	if res.N == 0 {
		return nil, nil
	}
	return d, nil
}

// InsertMany performs an unordered insert and returns only the documents the server did not reject.
func (c *Client) InsertMany(ctx context.Context, db, collection string, docs []any) ([]bson.D, error) {
	prepared := make([]bson.D, 0, len(docs))
	batch := make([]any, 0, len(docs))
	for _, doc := range docs {
		d, err := withID(doc)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, d)
		batch = append(batch, d)
	}
	if len(batch) == 0 {
		return []bson.D{}, nil
	}

	res, err := c.insert(ctx, db, collection, batch, false)
	if err != nil {
		return nil, err
	}
	if res.N == 0 {
		return []bson.D{}, nil
	}
	if int(res.N) >= len(prepared) {
		return prepared, nil
	}

	rejected := make(map[int]struct{}, len(res.WriteErrors))
	for _, we := range res.WriteErrors {
		rejected[we.Index] = struct{}{}
	}
	inserted := make([]bson.D, 0, res.N)
	for i, d := range prepared {
		if _, ok := rejected[i]; !ok {
			inserted = append(inserted, d)
		}
	}
	return inserted, nil
}

func (c *Client) insert(ctx context.Context, db, collection string, docs []any, ordered bool) (*insertResult, error) {
	cmd := bson.D{
		{Key: "insert", Value: collection},
		{Key: "documents", Value: docs},
		{Key: "writeConcern", Value: majority},
	}
	if !ordered {
		cmd = append(cmd, bson.E{Key: "ordered", Value: false})
	}
	raw, err := c.run(ctx, db, cmd)
	if err != nil {
		return nil, err
	}
	var res insertResult
	if err := bson.Unmarshal(raw, &res); err != nil {
		return nil, NewCommandError(CodeCommandNotOK, "unable to decode insert result", raw, err)
	}
	return &res, nil
}

// withID converts doc to an ordered document with _id first, generating one when missing.
func withID(doc any) (bson.D, error) {
	d, err := ToDocument(doc)
	if err != nil {
		return nil, err
	}
	for _, e := range d {
		if e.Key != "_id" {
			continue
		}
		if oid, ok := e.Value.(primitive.ObjectID); !ok || !oid.IsZero() {
			return d, nil
		}
	}
	out := make(bson.D, 0, len(d)+1)
	out = append(out, bson.E{Key: "_id", Value: primitive.NewObjectID()})
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out, nil
}

// ToDocument marshals v into an ordered bson document.
func ToDocument(v any) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, NewCommandError(CodeCommandFailed, "unable to encode document", nil, err)
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, NewCommandError(CodeCommandFailed, "unable to encode document", nil, err)
	}
	return d, nil
}
