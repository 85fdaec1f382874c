package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	SequenceCollection = "sys.ids"

	sparseSeed    = 1102000
	sparseMaxStep = 50
)

// NextSequenceID returns the next dense counter value for name, creating the counter on first use.
func (c *Client) NextSequenceID(ctx context.Context, db, name string) (int64, error) {
	mod, err := c.FindAndModify(ctx, db, SequenceCollection, bson.D{{Key: "_id", Value: name}}, ModifyOptions{
		Update: bson.D{
			{Key: "$inc", Value: bson.D{{Key: "sequence", Value: 1}}},
			{Key: "$currentDate", Value: bson.D{{Key: "lastModified", Value: bson.D{{Key: "$type", Value: "date"}}}}},
		},
		Upsert: true,
	})
	if err != nil {
		return 0, err
	}
	if mod == nil {
		return 0, NewCommandError(CodeCommandNotOK, "sequence upsert returned no document", name, ErrNotOK)
	}
	return counterValue(mod.Document, "sequence")
}

// NextSparseID advances the sparse counter for name by a random step of 1 to 50.
// A missing counter is seeded above 1102000 by a second, upserting findAndModify.
func (c *Client) NextSparseID(ctx context.Context, db, name string) (int64, error) {
	step := c.step()

	mod, err := c.incrementSparse(ctx, db, name, step)
	if err != nil {
		return 0, err
	}
	if mod != nil {
		return counterValue(mod.Document, "sparse")
	}

	mod, err = c.FindAndModify(ctx, db, SequenceCollection, bson.D{{Key: "_id", Value: name}}, ModifyOptions{
		Update: bson.D{
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "sparse", Value: int64(sparseSeed) + step},
				{Key: "createdAt", Value: nowDate()},
			}},
			{Key: "$currentDate", Value: bson.D{{Key: "lastModified", Value: bson.D{{Key: "$type", Value: "date"}}}}},
		},
		Upsert: true,
	})
	if err != nil {
		return 0, err
	}
	if mod == nil {
		return 0, NewCommandError(CodeCommandNotOK, "sparse sequence upsert returned no document", name, ErrNotOK)
	}
	if !mod.UpdatedExisting {
		return counterValue(mod.Document, "sparse")
	}

	// Another caller seeded the counter between the two phases.
	c.logger.WithFields(logrus.Fields{
		"db":       db,
		"sequence": name,
		"document": mod.Document.String(),
	}).Warn("sparse id is not new")
	mod, err = c.incrementSparse(ctx, db, name, step)
	if err != nil {
		return 0, err
	}
	if mod == nil {
		return 0, NewCommandError(CodeCommandNotOK, "sparse sequence vanished after seed", name, ErrNotOK)
	}
	return counterValue(mod.Document, "sparse")
}

func (c *Client) incrementSparse(ctx context.Context, db, name string, step int64) (*Modified, error) {
	return c.FindAndModify(ctx, db, SequenceCollection, bson.D{{Key: "_id", Value: name}}, ModifyOptions{
		Update: bson.D{
			{Key: "$inc", Value: bson.D{{Key: "sparse", Value: step}}},
			{Key: "$currentDate", Value: bson.D{{Key: "lastModified", Value: bson.D{{Key: "$type", Value: "date"}}}}},
		},
	})
}

func counterValue(doc bson.Raw, field string) (int64, error) {
	v, err := doc.LookupErr(field)
	if err != nil {
		return 0, NewCommandError(CodeCommandNotOK, fmt.Sprintf("counter document has no %q field", field), doc, err)
	}
	n, ok := v.AsInt64OK()
	if !ok {
		return 0, NewCommandError(CodeCommandNotOK, fmt.Sprintf("counter field %q is not numeric", field), doc, ErrNotOK)
	}
	return n, nil
}
