package service

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCookiesDisabled    = errors.New("you need to enable cookies to log in")
	ErrInvalidUser        = errors.New("login needs a valid user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	CodeCreateSession    = "ESES0001"
	CodeTerminateSession = "ESES0002"
	CodeRefreshSession   = "ESES0003"
)
