package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// UsernamePattern allows latin letters, digits, underscores and hyphens.
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	// MinUsernameLen is the minimum username length
	MinUsernameLen = 3
	// MaxUsernameLen is the maximum username length
	MaxUsernameLen = 20
)

var reservedUsernames = map[string]struct{}{
	"admin":     {},
	"root":      {},
	"system":    {},
	"api":       {},
	"www":       {},
	"mail":      {},
	"ftp":       {},
	"localhost": {},
}

// ErrUsernameReserved is returned for names held back for the site itself.
var ErrUsernameReserved = errors.New("This username is reserved")

// ValidateUsername checks length, alphabet and the reserved list.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("Username is required")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("Username must be at least %d characters", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("Username must be no more than %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return errors.New("Username can only contain letters, numbers, underscores, and hyphens")
	}

	if IsReservedUsername(username) {
		return ErrUsernameReserved
	}

	return nil
}

// IsReservedUsername reports whether username (case-insensitive) is reserved.
func IsReservedUsername(username string) bool {
	_, ok := reservedUsernames[strings.ToLower(username)]
	return ok
}
