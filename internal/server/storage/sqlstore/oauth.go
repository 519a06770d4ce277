package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

// GetOAuthAccount retrieves the link for (provider, providerUserID)
func (s *Storage) GetOAuthAccount(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error) {
	query := s.rebind(`
		SELECT id, user_id, provider, provider_user_id, provider_email, provider_username,
			provider_avatar_url, access_token, refresh_token, expires_at, created_at, updated_at
		FROM oauth_accounts
		WHERE provider = ? AND provider_user_id = ?
	`)

	var (
		account                                  models.OAuthAccount
		email, username, avatar, access, refresh sql.NullString
		expiresAt                                sql.NullInt64
		createdAt, updatedAt                     int64
	)

	err := s.db.QueryRowContext(ctx, query, provider, providerUserID).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderUserID,
		&email,
		&username,
		&avatar,
		&access,
		&refresh,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOAuthAccountNotFound
		}
		return nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	account.ProviderEmail = stringPtr(email)
	account.ProviderUsername = stringPtr(username)
	account.ProviderAvatarURL = stringPtr(avatar)
	account.AccessToken = stringPtr(access)
	account.RefreshToken = stringPtr(refresh)
	account.ExpiresAt = timePtr(expiresAt)
	account.CreatedAt = time.Unix(createdAt, 0)
	account.UpdatedAt = time.Unix(updatedAt, 0)

	return &account, nil
}

// UpsertOAuthAccount inserts the link or refreshes the stored profile
// snapshot and tokens when (provider, provider_user_id) already exists.
// The owning user of an existing link is never changed.
func (s *Storage) UpsertOAuthAccount(ctx context.Context, account *models.OAuthAccount) error {
	query := s.rebind(`
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, provider_email,
			provider_username, provider_avatar_url, access_token, refresh_token, expires_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_user_id) DO UPDATE SET
			provider_email = excluded.provider_email,
			provider_username = excluded.provider_username,
			provider_avatar_url = excluded.provider_avatar_url,
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, oauth_accounts.refresh_token),
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderUserID,
		nullString(account.ProviderEmail),
		nullString(account.ProviderUsername),
		nullString(account.ProviderAvatarURL),
		nullString(account.AccessToken),
		nullString(account.RefreshToken),
		nullUnix(account.ExpiresAt),
		account.CreatedAt.Unix(),
		account.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert oauth account: %w", classify(err))
	}

	return nil
}
