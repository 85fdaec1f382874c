package entity

import (
	"time"

	"webstack/internal/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const SecurityLogCollection = "security.log"

type SecurityAction string

const (
	LoginSuccess   SecurityAction = "login_success"
	LoginFailed    SecurityAction = "login_failed"
	Logout         SecurityAction = "logout"
	SessionExpired SecurityAction = "session_expired"
)

type SecurityLog struct {
	database.Model `bson:",inline"`

	UserID    *primitive.ObjectID `bson:"user,omitempty"`
	SessionID *primitive.ObjectID `bson:"session,omitempty"`
	Device    string              `bson:"device,omitempty"`

	IPAddress string         `bson:"ip,omitempty"`
	Action    SecurityAction `bson:"action"`
	Metadata  map[string]any `bson:"metadata,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
}
