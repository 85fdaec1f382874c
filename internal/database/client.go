package database

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Commander runs a raw command document against a logical database.
type Commander interface {
	RunCommand(ctx context.Context, db string, cmd bson.D) (bson.Raw, error)
}

// DefaultLimit caps find and aggregation batches when no limit is given.
const DefaultLimit = 100

var majority = bson.D{{Key: "w", Value: "majority"}}

// Client issues typed command operations over a Commander.
type Client struct {
	commander Commander
	step      func() int64
	logger    logrus.FieldLogger
}

type ClientOption func(*Client)

// WithSparseStep replaces the random step used by sparse sequence ids.
func WithSparseStep(step func() int64) ClientOption {
	return func(c *Client) {
		c.step = step
	}
}

// WithLogger sets the logger used for command diagnostics.
func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger.WithField("component", "MongoClient")
	}
}

func NewClient(commander Commander, opts ...ClientOption) *Client {
	c := &Client{
		commander: commander,
		step:      func() int64 { return rand.Int64N(sparseMaxStep) + 1 },
		logger:    logrus.StandardLogger().WithField("component", "MongoClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) run(ctx context.Context, db string, cmd bson.D) (bson.Raw, error) {
	return c.commander.RunCommand(ctx, db, cmd)
}

func limitOrDefault(limit int64) int64 {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func orEmpty(v any) any {
	if v == nil {
		return bson.D{}
	}
	return v
}

func nowDate() primitive.DateTime {
	return primitive.NewDateTimeFromTime(time.Now())
}
