package validation

import (
	"errors"
	"regexp"
	"strings"
)

// MaxEmailLen is the longest accepted address.
const MaxEmailLen = 255

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

var suspiciousEmailPatterns = []string{"<script", "javascript:", "data:", "vbscript:"}

// ValidateEmail checks the address format and rejects script-like content.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("Email is required")
	}

	if len(email) > MaxEmailLen {
		return errors.New("Email is too long (max 255 characters)")
	}

	if !emailPattern.MatchString(email) {
		return errors.New("Invalid email format")
	}

	lower := strings.ToLower(email)
	for _, p := range suspiciousEmailPatterns {
		if strings.Contains(lower, p) {
			return errors.New("Email contains suspicious content")
		}
	}

	return nil
}

// NormalizeEmail trims and lowercases an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
