package database

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh Identifier.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// NewIDString returns a fresh Identifier as a 24 character hex string.
func NewIDString() string {
	return primitive.NewObjectID().Hex()
}

func ParseID(id string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(id)
}

func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// IsIDExpired reports whether the creation time embedded in id is older than ttl at now.
// Invalid ids are always expired.
func IsIDExpired(id string, ttl time.Duration, now time.Time) bool {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return true
	}
	return oid.Timestamp().Add(ttl).Before(now)
}
