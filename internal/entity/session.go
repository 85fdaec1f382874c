package entity

import (
	"time"

	"webstack/internal/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const SessionCollection = "session"

type TokenRecord struct {
	Token   string      `bson:"token" json:"token"`
	Context Fingerprint `bson:"context" json:"context"`
}

type Session struct {
	database.Model `bson:",inline"`

	Device string             `bson:"device" json:"device"`
	User   primitive.ObjectID `bson:"user" json:"user"`

	Token  string        `bson:"token" json:"token"`
	Tokens []TokenRecord `bson:"tokens,omitempty" json:"tokens,omitempty"`

	Expires time.Time `bson:"expires" json:"expires"`
	Exited  bool      `bson:"exited" json:"exited"`
	Blocked bool      `bson:"blocked" json:"blocked"`
	Reason  string    `bson:"reason,omitempty" json:"reason,omitempty"`

	Previous *primitive.ObjectID `bson:"previous,omitempty" json:"previous,omitempty"`
}
