package entity

import (
	"time"

	"webstack/internal/database"
)

const TaskCollection = "task"

type Task struct {
	database.Model `bson:",inline"`

	SeqID     int64     `bson:"id,omitempty" json:"id,omitempty"`
	Title     string    `bson:"title" json:"title"`
	Done      bool      `bson:"done" json:"done"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (t *Task) SetSequenceID(id int64) {
	t.SeqID = id
}
