package validation

import (
	"errors"
	"strings"
	"unicode"
)

const (
	// MaxCommentLen is the longest accepted comment body, in characters.
	MaxCommentLen = 5000
	// MaxPostIDLen is the longest accepted post identifier.
	MaxPostIDLen = 255
)

var spamKeywords = []string{
	"viagra", "casino", "poker", "xxx", "porn",
	"free money", "click here", "buy now", "make money fast", "work from home",
	"lose weight", "winner", "congratulations", "you have won", "lottery",
	"inheritance", "nigerian", "western union", "money transfer",
	"bitcoin investment", "crypto investment", "forex trading", "binary options",
	"multi-level marketing", "mlm", "pyramid scheme", "get rich quick",
	"easy money", "passive income", "financial freedom", "debt relief", "credit repair",
}

// ValidatePostID rejects empty, oversized and path-like identifiers.
func ValidatePostID(postID string) error {
	if postID == "" {
		return errors.New("Post ID is required")
	}
	if len(postID) > MaxPostIDLen {
		return errors.New("Post ID is too long")
	}
	if strings.Contains(postID, "..") || strings.Contains(postID, "~") {
		return errors.New("Invalid post ID")
	}
	return nil
}

// ValidateCommentContent checks length and a few cheap quality heuristics:
// word repetition, shouting and punctuation floods.
func ValidateCommentContent(content string) error {
	if content == "" {
		return errors.New("Comment content is required")
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("Comment cannot be empty")
	}
	if len([]rune(content)) > MaxCommentLen {
		return errors.New("Comment is too long (max 5000 characters)")
	}

	words := strings.Fields(content)
	if len(words) > 10 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[strings.ToLower(w)] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < 0.3 {
			return errors.New("Comment contains too much repetition")
		}
	}

	var upper, visible, punct int
	for _, r := range content {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if r >= 'A' && r <= 'Z' {
			upper++
		}
		if strings.ContainsRune("!?.,;:", r) {
			punct++
		}
	}
	if visible > 20 && float64(upper)/float64(visible) > 0.7 {
		return errors.New("Comment contains too much capitalization")
	}
	if punct > 20 {
		return errors.New("Comment contains excessive punctuation")
	}

	return nil
}

// CheckSpam reports whether content contains a known spam phrase.
func CheckSpam(content string) error {
	lower := strings.ToLower(content)
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			return errors.New("Comment contains spam content")
		}
	}
	return nil
}
