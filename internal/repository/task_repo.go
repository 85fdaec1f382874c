package repository

import (
	"context"

	"webstack/internal/database"
	"webstack/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
)

type TaskRepository interface {
	New(ctx context.Context) (*entity.Task, error)
	InsertOne(ctx context.Context, task *entity.Task) (*entity.Task, error)
	List(ctx context.Context, skip, limit int64) (*database.Page[*entity.Task], error)
	DeleteByID(ctx context.Context, id string) (*entity.Task, error)
}

type taskRepository struct {
	tasks *Collection[entity.Task, *entity.Task]
}

func NewTaskRepository(db *Database) TaskRepository {
	return &taskRepository{tasks: NewCollection[entity.Task](db, entity.TaskCollection)}
}

// New allocates a sparse sequence id for a task that has not been stored yet.
func (r *taskRepository) New(ctx context.Context) (*entity.Task, error) {
	return r.tasks.CreateOneWithSequenceID(ctx, true)
}

func (r *taskRepository) InsertOne(ctx context.Context, task *entity.Task) (*entity.Task, error) {
	return r.tasks.InsertOne(ctx, task)
}

func (r *taskRepository) List(ctx context.Context, skip, limit int64) (*database.Page[*entity.Task], error) {
	return r.tasks.Find(ctx, database.FindOptions{
		Sort:  bson.D{{Key: "createdAt", Value: -1}},
		Skip:  skip,
		Limit: limit,
	})
}

func (r *taskRepository) DeleteByID(ctx context.Context, id string) (*entity.Task, error) {
	return r.tasks.DeleteOneByID(ctx, id)
}
