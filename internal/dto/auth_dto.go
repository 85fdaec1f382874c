package dto

import (
	"time"

	"webstack/internal/entity"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type SessionResponse struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Expires  time.Time `json:"expires"`
	Previous string    `json:"previous,omitempty"`
}

func SessionResponseFromEntity(s *entity.Session) SessionResponse {
	resp := SessionResponse{
		ID:      s.ID.Hex(),
		User:    s.User.Hex(),
		Expires: s.Expires,
	}
	if s.Previous != nil {
		resp.Previous = s.Previous.Hex()
	}
	return resp
}

type UserResponse struct {
	ID        string    `json:"id"`
	SeqID     int64     `json:"seq,omitempty"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	return UserResponse{
		ID:        user.ID.Hex(),
		SeqID:     user.SeqID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     roles,
		CreatedAt: user.CreatedAt,
	}
}

type LoginResponse struct {
	Session SessionResponse `json:"session"`
	User    UserResponse    `json:"user"`
}
