package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// ModifyOptions configures a findAndModify. The modified document is returned
// unless ReturnOriginal is set; Remove always returns the removed document.
type ModifyOptions struct {
	Update         any
	Fields         any
	Sort           any
	Upsert         bool
	Remove         bool
	ReturnOriginal bool
}

// Modified is the document returned by findAndModify, tagged with whether it matched an existing document.
type Modified struct {
	Document        bson.Raw
	UpdatedExisting bool
}

type findAndModifyResult struct {
	LastErrorObject struct {
		UpdatedExisting bool  `bson:"updatedExisting"`
		N               int64 `bson:"n"`
	} `bson:"lastErrorObject"`
	Value bson.RawValue `bson:"value"`
}

// FindAndModify atomically modifies a single document. A nil result means nothing matched.
func (c *Client) FindAndModify(ctx context.Context, db, collection string, filter any, opts ModifyOptions) (*Modified, error) {
	cmd := bson.D{
		{Key: "findAndModify", Value: collection},
		{Key: "query", Value: orEmpty(filter)},
		{Key: "writeConcern", Value: majority},
	}
	if opts.Remove {
		cmd = append(cmd, bson.E{Key: "remove", Value: true}, bson.E{Key: "new", Value: false})
	} else {
		cmd = append(cmd,
			bson.E{Key: "update", Value: orEmpty(opts.Update)},
			bson.E{Key: "new", Value: !opts.ReturnOriginal},
			bson.E{Key: "upsert", Value: opts.Upsert},
		)
	}
	if opts.Fields != nil {
		cmd = append(cmd, bson.E{Key: "fields", Value: opts.Fields})
	}
	if opts.Sort != nil {
		cmd = append(cmd, bson.E{Key: "sort", Value: opts.Sort})
	}

	raw, err := c.run(ctx, db, cmd)
	if err != nil {
		return nil, err
	}

	var res findAndModifyResult
	if err := bson.Unmarshal(raw, &res); err != nil {
		return nil, NewCommandError(CodeCommandNotOK, "unable to decode findAndModify result", raw, err)
	}
	doc, ok := res.Value.DocumentOK()
	if !ok {
		return nil, nil
	}
	return &Modified{Document: doc, UpdatedExisting: res.LastErrorObject.UpdatedExisting}, nil
}
