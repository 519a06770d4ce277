//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

func setupPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("commentauth"),
		postgres.WithUsername("commentauth"),
		postgres.WithPassword("commentauth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(cleanupCtx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, DialectPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestPostgresIntegration(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	user := newTestUser("pg@example.com", "pguser")
	require.NoError(t, s.CreateUser(ctx, user))

	err := s.CreateUser(ctx, newTestUser("pg@example.com", "pguser2"))
	require.ErrorIs(t, err, storage.ErrConflict)
	field, _ := storage.UniqueField(err)
	assert.Equal(t, "email", field)

	now := time.Now()
	require.NoError(t, s.CreateSession(ctx, testSession(user.ID, "pg-token", now.Add(time.Hour))))

	got, err := s.GetSessionByToken(ctx, "pg-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	require.NoError(t, s.CreateTwoFactorToken(ctx, &models.TwoFactorToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     "424242",
		Type:      models.TwoFactorTokenEmail,
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}))
	require.NoError(t, s.ConsumeTwoFactorToken(ctx, user.ID, "424242", models.TwoFactorTokenEmail, now))
	assert.ErrorIs(t, s.ConsumeTwoFactorToken(ctx, user.ID, "424242", models.TwoFactorTokenEmail, now),
		storage.ErrTwoFactorTokenNotFound)

	require.NoError(t, s.DeleteUser(ctx, user.ID))
	_, err = s.GetSessionByToken(ctx, "pg-token")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}
