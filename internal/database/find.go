package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions narrows a find. Zero values select the server defaults, except
// Limit which falls back to DefaultLimit.
type FindOptions struct {
	Filter     any
	Projection any
	Sort       any
	Skip       int64
	Limit      int64
}

// Batch is the first batch of a read tagged with the total number of matching documents.
type Batch struct {
	Documents []bson.Raw
	Total     int64
}

type countResult struct {
	N int64 `bson:"n"`
}

type cursorResult struct {
	Cursor struct {
		FirstBatch []bson.Raw `bson:"firstBatch"`
	} `bson:"cursor"`
}

// Count returns the number of documents in collection matching filter.
func (c *Client) Count(ctx context.Context, db, collection string, filter any) (int64, error) {
	raw, err := c.run(ctx, db, bson.D{
		{Key: "count", Value: collection},
		{Key: "query", Value: orEmpty(filter)},
	})
	if err != nil {
		return 0, err
	}
	var res countResult
	if err := bson.Unmarshal(raw, &res); err != nil {
		return 0, NewCommandError(CodeCommandNotOK, "unable to decode count result", raw, err)
	}
	return res.N, nil
}

// Find always counts first and only issues the find when something matches.
func (c *Client) Find(ctx context.Context, db, collection string, opts FindOptions) (*Batch, error) {
	total, err := c.Count(ctx, db, collection, opts.Filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &Batch{Documents: []bson.Raw{}, Total: 0}, nil
	}

	limit := limitOrDefault(opts.Limit)
	raw, err := c.run(ctx, db, bson.D{
		{Key: "find", Value: collection},
		{Key: "batchSize", Value: limit},
		{Key: "filter", Value: orEmpty(opts.Filter)},
		{Key: "sort", Value: orEmpty(opts.Sort)},
		{Key: "projection", Value: orEmpty(opts.Projection)},
		{Key: "skip", Value: opts.Skip},
		{Key: "limit", Value: limit},
	})
	if err != nil {
		return nil, err
	}
	docs, err := firstBatch(raw)
	if err != nil {
		return nil, err
	}
	return &Batch{Documents: docs, Total: total}, nil
}

// FindOne returns the first matching document, or nil when nothing matches.
func (c *Client) FindOne(ctx context.Context, db, collection string, filter, projection any) (bson.Raw, error) {
	cmd := bson.D{
		{Key: "find", Value: collection},
		{Key: "filter", Value: orEmpty(filter)},
		{Key: "limit", Value: 1},
	}
	if projection != nil {
		cmd = append(cmd, bson.E{Key: "projection", Value: projection})
	}
	raw, err := c.run(ctx, db, cmd)
	if err != nil {
		return nil, err
	}
	docs, err := firstBatch(raw)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func firstBatch(raw bson.Raw) ([]bson.Raw, error) {
	var res cursorResult
	if err := bson.Unmarshal(raw, &res); err != nil {
		return nil, NewCommandError(CodeCommandNotOK, "unable to decode cursor result", raw, err)
	}
	if res.Cursor.FirstBatch == nil {
		return []bson.Raw{}, nil
	}
	return res.Cursor.FirstBatch, nil
}
