package repository

import (
	"context"
	"time"

	"webstack/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionRepository interface {
	InsertOne(ctx context.Context, session *entity.Session) (*entity.Session, error)
	Terminate(ctx context.Context, sessionID, userID primitive.ObjectID, reason string) (*entity.Session, error)
	Rotate(ctx context.Context, r SessionRotation) (*entity.Session, error)
}

// SessionRotation identifies the active session to rotate and the token replacing its current one.
type SessionRotation struct {
	ID     primitive.ObjectID
	User   primitive.ObjectID
	Device string
	Token  string

	Now      time.Time
	NewToken string
	Context  entity.Fingerprint
	Expires  time.Time
}

type sessionRepository struct {
	sessions *Collection[entity.Session, *entity.Session]
}

func NewSessionRepository(db *Database) SessionRepository {
	return &sessionRepository{sessions: NewCollection[entity.Session](db, entity.SessionCollection)}
}

func (r *sessionRepository) InsertOne(ctx context.Context, s *entity.Session) (*entity.Session, error) {
	return r.sessions.InsertOne(ctx, s)
}

func (r *sessionRepository) Terminate(ctx context.Context, sessionID, userID primitive.ObjectID, reason string) (*entity.Session, error) {
	filter := bson.D{
		{Key: "_id", Value: sessionID},
		{Key: "user", Value: userID},
		{Key: "exited", Value: false},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "exited", Value: true}, {Key: "reason", Value: reason}}},
		{Key: "$currentDate", Value: bson.D{{Key: "expires", Value: bson.D{{Key: "$type", Value: "date"}}}}},
	}
	return r.sessions.FindAndUpdate(ctx, filter, update, nil, nil)
}

func (r *sessionRepository) Rotate(ctx context.Context, rot SessionRotation) (*entity.Session, error) {
	filter := bson.D{
		{Key: "_id", Value: rot.ID},
		{Key: "user", Value: rot.User},
		{Key: "device", Value: rot.Device},
		{Key: "token", Value: rot.Token},
		{Key: "exited", Value: false},
		{Key: "blocked", Value: false},
		{Key: "expires", Value: bson.D{{Key: "$gt", Value: rot.Now}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "token", Value: rot.NewToken}, {Key: "expires", Value: rot.Expires}}},
		{Key: "$push", Value: bson.D{{Key: "tokens", Value: entity.TokenRecord{Token: rot.NewToken, Context: rot.Context}}}},
	}
	return r.sessions.FindAndUpdate(ctx, filter, update, bson.D{{Key: "tokens", Value: 0}}, nil)
}
