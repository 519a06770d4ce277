package models

import "time"

// User is an identity record. Email and username are globally unique.
type User struct {
	CreatedAt        time.Time `json:"created_at"`         // creation time
	UpdatedAt        time.Time `json:"updated_at"`         // last modification time
	PasswordHash     *string   `json:"-"`                  // PBKDF2 hash, nil for OAuth-only accounts
	AvatarURL        *string   `json:"avatar_url"`         // optional avatar
	TwoFactorSecret  *string   `json:"-"`                  // base32 TOTP secret, set only while 2FA is enabled
	ID               string    `json:"id"`                 // UUID
	Email            string    `json:"email"`              // lowercase, unique
	Username         string    `json:"username"`           // unique, 3-20 chars
	EmailVerified    bool      `json:"email_verified"`     // mailbox ownership proven
	TwoFactorEnabled bool      `json:"two_factor_enabled"` // TOTP confirmed
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// OAuthAccount links a User to a federated identity.
// (Provider, ProviderUserID) is unique.
type OAuthAccount struct {
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ProviderEmail     *string    `json:"provider_email"`
	ProviderUsername  *string    `json:"provider_username"`
	ProviderAvatarURL *string    `json:"provider_avatar_url"`
	AccessToken       *string    `json:"-"`
	RefreshToken      *string    `json:"-"`
	ExpiresAt         *time.Time `json:"expires_at"`
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Provider          string     `json:"provider"`
	ProviderUserID    string     `json:"provider_user_id"`
}

// Provider names.
const (
	ProviderGoogle = "google"
)
