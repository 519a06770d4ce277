package models

import "time"

// Session is a live authentication grant identified by an opaque token.
type Session struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UserAgent *string   `json:"user_agent"` // informational
	IPAddress *string   `json:"ip_address"` // informational
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"` // bearer credential, unique
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TwoFactorTokenType distinguishes single-use second factor artifacts.
type TwoFactorTokenType string

const (
	TwoFactorTokenEmail    TwoFactorTokenType = "email"
	TwoFactorTokenRecovery TwoFactorTokenType = "recovery"
)

// TwoFactorToken is a single-use, time-boxed verification code.
type TwoFactorToken struct {
	ExpiresAt time.Time          `json:"expires_at"`
	CreatedAt time.Time          `json:"created_at"`
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Token     string             `json:"-"`
	Type      TwoFactorTokenType `json:"type"`
	Used      bool               `json:"used"`
}

// Valid reports whether the token can still be consumed at now.
func (t *TwoFactorToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
