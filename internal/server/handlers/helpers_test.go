package handlers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage/boltdb"
	"github.com/iudanet/commentauth/internal/server/storage/sqlstore"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/internal/server/verification"
)

const strongPassword = "Tr0ub4dor&3x"

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureMailer remembers the last code sent to each address
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendVerificationCode(ctx context.Context, to, code, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) SendTwoFactorCode(ctx context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testEnv struct {
	store    *sqlstore.Storage
	auth     *auth.Service
	sessions *session.Manager
	engine   *twofactor.Engine
	mailer   *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kv, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	logger := setupTestLogger()
	m := &captureMailer{codes: map[string]string{}}
	sessions := session.NewManager(store, session.DefaultMaxAge, logger)
	engine := twofactor.NewEngine(store, store, m, "Blog", logger)

	return &testEnv{
		store:    store,
		sessions: sessions,
		engine:   engine,
		mailer:   m,
		auth: auth.NewService(auth.Deps{
			Users:     store,
			Sessions:  sessions,
			Codes:     verification.NewStore(kv),
			TwoFactor: engine,
			Mailer:    m,
			Resolver:  oauth.NewResolver(store, store, logger),
			Logger:    logger,
		}),
	}
}
