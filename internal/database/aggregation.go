package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// AggregationQuery describes a pipeline. Stages are added only for non-empty parts.
// Lookup maps a local field to the collection it references by _id; the joined
// array is flattened to its first element. Graph maps an output field to the
// field that links documents of the same collection.
type AggregationQuery struct {
	Filter     bson.D
	Group      bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
	Lookup     bson.D
	Formula    bson.D
	Graph      bson.D
	Projection bson.D
}

const graphMaxDepth = 10

// Pipeline builds the aggregation stages for collection.
func (q AggregationQuery) Pipeline(collection string) bson.A {
	pipeline := bson.A{}
	if len(q.Filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: q.Filter}})
	}
	if len(q.Group) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$group", Value: q.Group}})
	}
	if len(q.Sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: q.Sort}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$skip", Value: q.Skip}},
		bson.D{{Key: "$limit", Value: limitOrDefault(q.Limit)}},
	)

	for _, e := range q.Lookup {
		pipeline = append(pipeline,
			bson.D{{Key: "$lookup", Value: bson.D{
				{Key: "from", Value: e.Value},
				{Key: "localField", Value: e.Key},
				{Key: "foreignField", Value: "_id"},
				{Key: "as", Value: e.Key},
			}}},
			bson.D{{Key: "$addFields", Value: bson.D{
				{Key: e.Key, Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + e.Key, 0}}}},
			}}},
		)
	}

	if len(q.Formula) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: q.Formula}})
	}

	for _, e := range q.Graph {
		field, _ := e.Value.(string)
		pipeline = append(pipeline, bson.D{{Key: "$graphLookup", Value: bson.D{
			{Key: "from", Value: collection},
			{Key: "connectToField", Value: "_id"},
			{Key: "startWith", Value: "$" + field},
			{Key: "connectFromField", Value: field},
			{Key: "as", Value: e.Key},
			{Key: "maxDepth", Value: graphMaxDepth},
		}}})
	}

	if len(q.Projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: q.Projection}})
	}
	return pipeline
}

func (c *Client) Aggregation(ctx context.Context, db, collection string, q AggregationQuery) (*Batch, error) {
	total, err := c.Count(ctx, db, collection, q.Filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &Batch{Documents: []bson.Raw{}, Total: 0}, nil
	}

	raw, err := c.run(ctx, db, bson.D{
		{Key: "aggregate", Value: collection},
		{Key: "pipeline", Value: q.Pipeline(collection)},
		{Key: "allowDiskUse", Value: true},
		{Key: "cursor", Value: bson.D{{Key: "batchSize", Value: limitOrDefault(q.Limit)}}},
	})
	if err != nil {
		return nil, err
	}

	var legacy struct {
		Result []bson.Raw `bson:"result"`
	}
	if err := bson.Unmarshal(raw, &legacy); err == nil && legacy.Result != nil {
		return &Batch{Documents: legacy.Result, Total: total}, nil
	}
	docs, err := firstBatch(raw)
	if err != nil {
		return nil, err
	}
	return &Batch{Documents: docs, Total: total}, nil
}
