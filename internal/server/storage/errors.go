package storage

import (
	"errors"
	"fmt"
)

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrOAuthAccountNotFound indicates that no account links the federated identity
	ErrOAuthAccountNotFound = errors.New("oauth account not found")

	// ErrSessionNotFound indicates that no session has the given token
	ErrSessionNotFound = errors.New("session not found")

	// ErrTwoFactorTokenNotFound indicates that no unused, unexpired token matched
	ErrTwoFactorTokenNotFound = errors.New("two-factor token not found")

	// ErrCommentNotFound indicates that comment was not found
	ErrCommentNotFound = errors.New("comment not found")

	// ErrKeyNotFound indicates that a key-value entry is absent or expired
	ErrKeyNotFound = errors.New("key not found")

	// ErrConflict is matched by every UniqueViolationError
	ErrConflict = errors.New("unique constraint violation")
)

// UniqueViolationError reports which unique field rejected a write.
// errors.Is(err, ErrConflict) holds for every value.
type UniqueViolationError struct {
	Err   error
	Field string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on %s", e.Field)
}

func (e *UniqueViolationError) Is(target error) bool {
	return target == ErrConflict
}

func (e *UniqueViolationError) Unwrap() error {
	return e.Err
}

// UniqueField returns the violated field of err, if err is a unique violation.
func UniqueField(err error) (string, bool) {
	var uv *UniqueViolationError
	if errors.As(err, &uv) {
		return uv.Field, true
	}
	return "", false
}
