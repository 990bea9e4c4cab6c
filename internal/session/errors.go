package session

import (
	"errors"
	"fmt"
)

// Code classifies why an operation was rejected. Codes travel to clients in ERROR_EVENT frames.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeDuplicatePlayer Code = "DUPLICATE_PLAYER"
	CodeInvalidAction   Code = "INVALID_ACTION"
	CodeEmptyPile       Code = "EMPTY_PILE"
	CodeUnauthorized    Code = "UNAUTHORIZED"
)

// Error is a recoverable rejection. Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrDuplicatePlayer = &Error{Code: CodeDuplicatePlayer, Message: "duplicate player"}
	ErrInvalidAction   = &Error{Code: CodeInvalidAction, Message: "invalid action"}
	ErrEmptyPile       = &Error{Code: CodeEmptyPile, Message: "draw pile is empty"}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
)

func reject(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the rejection code from err, or "" if err is not a session error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
