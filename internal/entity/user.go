package entity

import (
	"time"

	"webstack/internal/database"
)

const UserCollection = "user"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	database.Model `bson:",inline"`

	SeqID     int64  `bson:"id,omitempty" json:"id,omitempty"`
	FirstName string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Username  string `bson:"username" json:"username"`

	Password string     `bson:"password,omitempty" json:"-"`
	Roles    []UserRole `bson:"roles,omitempty" json:"roles,omitempty"`

	Suspended bool `bson:"suspended,omitempty" json:"suspended,omitempty"`
	Deleted   bool `bson:"deleted,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

func (u *User) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
