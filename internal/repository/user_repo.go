package repository

import (
	"context"

	"webstack/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string, projection any) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	EnsureByUsername(ctx context.Context, user *entity.User) (*entity.User, error)
}

type userRepository struct {
	users *Collection[entity.User, *entity.User]
}

func NewUserRepository(db *Database) UserRepository {
	return &userRepository{users: NewCollection[entity.User](db, entity.UserCollection)}
}

func (r *userRepository) FindByID(ctx context.Context, id string, projection any) (*entity.User, error) {
	return r.users.FindOneByID(ctx, id, projection)
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.users.FindOne(ctx, bson.D{
		{Key: "username", Value: username},
		{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}},
	}, nil)
}

// EnsureByUsername inserts user unless a user with the same username exists.
// The returned user reports UpdatedExisting when it was already present.
func (r *userRepository) EnsureByUsername(ctx context.Context, user *entity.User) (*entity.User, error) {
	fields, err := withoutID(user)
	if err != nil {
		return nil, err
	}
	return r.users.FindAndUpsert(ctx,
		bson.D{{Key: "username", Value: user.Username}},
		bson.D{{Key: "$setOnInsert", Value: fields}},
		nil, nil)
}
