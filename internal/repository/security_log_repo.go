package repository

import (
	"context"

	"webstack/internal/entity"
)

type SecurityLogRepository interface {
	Log(ctx context.Context, log *entity.SecurityLog) error
}

type securityLogRepository struct {
	logs *Collection[entity.SecurityLog, *entity.SecurityLog]
}

func NewSecurityLogRepository(db *Database) SecurityLogRepository {
	return &securityLogRepository{logs: NewCollection[entity.SecurityLog](db, entity.SecurityLogCollection)}
}

func (r *securityLogRepository) Log(ctx context.Context, log *entity.SecurityLog) error {
	_, err := r.logs.InsertOne(ctx, log)
	return err
}
