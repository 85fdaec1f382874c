package database

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotReady    = errors.New("no connection to database")
	ErrTimeout     = errors.New("database not ready: connection timed out")
	ErrNotOK       = errors.New("mongodb command result is not ok")
	ErrMissingID   = errors.New("missing '_id' field which is mandatory for update document")
	ErrNotInserted = errors.New("document was not inserted")
	ErrNoServer    = errors.New("mongodb server is not configured")
)

// Stable short codes carried by CommandError.
const (
	CodeCommandFailed = "EDB0001"
	CodeCommandNotOK  = "EDB0002"
)

// CommandError wraps a failed database operation with the context that caused it.
type CommandError struct {
	Code    string
	Message string
	Context any
	Cause   error
}

func NewCommandError(code, message string, context any, cause error) *CommandError {
	return &CommandError{Code: code, Message: message, Context: context, Cause: cause}
}

func (e *CommandError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// TimeoutError is returned when a connection does not become ready in time.
type TimeoutError struct {
	Node    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: node %s not ready after %s", ErrTimeout, e.Node, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// TransportError reports a command attempted while the connection was down.
type TransportError struct {
	Node     string
	OldState State
	NewState State
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s, old state: %s, new state: %s. Please try to reconnect()", ErrNotReady, e.Node, e.OldState, e.NewState)
}

func (e *TransportError) Unwrap() error {
	return ErrNotReady
}
