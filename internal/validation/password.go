package validation

import (
	"errors"
	"strings"
)

const (
	// MinPasswordLen is the minimum password length.
	MinPasswordLen = 8
	// MaxPasswordLen is the maximum password length.
	MaxPasswordLen = 128
	// MinPasswordScore is the lowest strength score accepted at registration.
	MinPasswordScore = 4

	patternRun = 4
	repeatRun  = 3
)

// Strength labels a password score.
type Strength string

const (
	StrengthVeryWeak   Strength = "very-weak"
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very-strong"
)

var commonPasswords = map[string]struct{}{
	"password":  {},
	"123456":    {},
	"12345678":  {},
	"qwerty":    {},
	"abc123":    {},
	"password1": {},
	"admin":     {},
	"welcome":   {},
	"monkey":    {},
	"dragon":    {},
}

var keyboardRows = []string{
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
	"poiuytrewq",
	"lkjhgfdsa",
	"mnbvcxz",
}

// Password policy errors.
var (
	ErrPasswordRequired   = errors.New("Password is required")
	ErrPasswordTooShort   = errors.New("Password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("Password is too long (max 128 characters)")
	ErrPasswordCommon     = errors.New("Password is too common")
	ErrPasswordSequential = errors.New(`Password must not contain sequential characters (e.g., "abcd", "1234")`)
	ErrPasswordRepeated   = errors.New(`Password must not contain repeated characters (e.g., "aaa", "111")`)
	ErrPasswordKeyboard   = errors.New(`Password must not contain keyboard patterns (e.g., "qwer", "asdf")`)
	ErrPasswordWeak       = errors.New("Password must contain at least 8 characters with a mix of uppercase, lowercase, numbers, and special characters")
)

// ValidatePassword applies the registration password policy and returns
// the computed strength alongside any violation.
func ValidatePassword(password string) (Strength, error) {
	if password == "" {
		return StrengthVeryWeak, ErrPasswordRequired
	}

	length := len([]rune(password))
	if length < MinPasswordLen {
		return StrengthVeryWeak, ErrPasswordTooShort
	}
	if length > MaxPasswordLen {
		return StrengthVeryWeak, ErrPasswordTooLong
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return StrengthVeryWeak, ErrPasswordCommon
	}
	if hasSequentialRun(lower, patternRun) {
		return StrengthVeryWeak, ErrPasswordSequential
	}
	if hasRepeatedRun(lower, repeatRun) {
		return StrengthVeryWeak, ErrPasswordRepeated
	}
	if hasKeyboardPattern(lower, patternRun) {
		return StrengthVeryWeak, ErrPasswordKeyboard
	}

	score := PasswordScore(password)
	strength := strengthFor(score)
	if score < MinPasswordScore {
		return strength, ErrPasswordWeak
	}

	return strength, nil
}

// PasswordScore awards a point for length >= 12, length >= 16, and each of
// lowercase, uppercase, digit and other characters. The maximum is 6.
func PasswordScore(password string) int {
	score := 0
	length := len([]rune(password))
	if length >= 12 {
		score++
	}
	if length >= 16 {
		score++
	}

	var hasLower, hasUpper, hasDigit, hasOther bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasOther = true
		}
	}
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasOther} {
		if ok {
			score++
		}
	}

	return score
}

func strengthFor(score int) Strength {
	switch {
	case score >= 6:
		return StrengthVeryStrong
	case score == 5:
		return StrengthStrong
	case score == 4:
		return StrengthMedium
	case score == 3:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// hasSequentialRun reports a run of n characters each one code point above
// or below the previous, e.g. "abcd" or "4321".
func hasSequentialRun(s string, n int) bool {
	rs := []rune(s)
	for i := 0; i+n <= len(rs); i++ {
		step := rs[i+1] - rs[i]
		if step != 1 && step != -1 {
			continue
		}
		run := true
		for j := i + 1; j < i+n-1; j++ {
			if rs[j+1]-rs[j] != step {
				run = false
				break
			}
		}
		if run {
			return true
		}
	}
	return false
}

func hasRepeatedRun(s string, n int) bool {
	rs := []rune(s)
	count := 1
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1] {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 1
		}
	}
	return false
}

func hasKeyboardPattern(s string, n int) bool {
	for _, row := range keyboardRows {
		for i := 0; i+n <= len(row); i++ {
			if strings.Contains(s, row[i:i+n]) {
				return true
			}
		}
	}
	return false
}
