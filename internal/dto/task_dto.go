package dto

import (
	"time"

	"webstack/internal/entity"
)

type CreateTaskRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type TaskResponse struct {
	ID        string    `json:"id"`
	SeqID     int64     `json:"seq"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

func TaskResponseFromEntity(t *entity.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID.Hex(),
		SeqID:     t.SeqID,
		Title:     t.Title,
		Done:      t.Done,
		CreatedAt: t.CreatedAt,
	}
}

func TaskResponsesFromEntities(tasks []*entity.Task) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, TaskResponseFromEntity(t))
	}
	return responses
}

type VersionResponse struct {
	Version string `json:"version"`
}
