package validation

import (
	"errors"
	"regexp"
	"strings"
)

var twoFactorCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// NormalizeTwoFactorCode strips spaces and dashes users copy from apps.
func NormalizeTwoFactorCode(code string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(code))
}

// ValidateTwoFactorCode normalizes code and requires exactly six digits.
func ValidateTwoFactorCode(code string) (string, error) {
	if code == "" {
		return "", errors.New("Code is required")
	}
	normalized := NormalizeTwoFactorCode(code)
	if !twoFactorCodePattern.MatchString(normalized) {
		return "", errors.New("Code must be 6 digits")
	}
	return normalized, nil
}
