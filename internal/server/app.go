package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/config"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/ratelimit"
	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/comments"
	"github.com/iudanet/commentauth/internal/server/handlers"
	"github.com/iudanet/commentauth/internal/server/jobs"
	"github.com/iudanet/commentauth/internal/server/mailer"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/server/storage/boltdb"
	"github.com/iudanet/commentauth/internal/server/storage/redis"
	"github.com/iudanet/commentauth/internal/server/storage/sqlstore"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/internal/server/verification"
)

// App is a fully assembled server.
type App struct {
	Handler  http.Handler
	Sweeper  *jobs.Sweeper
	DB       *sqlstore.Storage
	KV       storage.KeyValueStore
	Sessions *session.Manager
	Metrics  *metrics.Metrics
}

// Stores opens the relational and key-value stores described by cfg.
// The caller closes both.
func Stores(ctx context.Context, cfg *config.Config) (*sqlstore.Storage, storage.KeyValueStore, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlstore.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	var kv storage.KeyValueStore
	switch cfg.KV.Backend {
	case "redis":
		kv, err = redis.New(ctx, redis.Config{URL: cfg.KV.RedisURL, Prefix: cfg.KV.Prefix})
	default:
		kv, err = boltdb.New(ctx, cfg.KV.BoltPath)
	}
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.KV.Backend, err)
	}

	return db, kv, nil
}

// Build assembles services, limiters, the router and the sweeper on top of
// already opened stores.
func Build(ctx context.Context, cfg *config.Config, db *sqlstore.Storage, kv storage.KeyValueStore, version string, logger *slog.Logger) (*App, error) {
	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	limiters, err := NewLimiters(cfg.RateLimit, kv)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(db, cfg.Session.MaxAge, logger, session.WithSecureCookie(cfg.IsProduction()))

	mail, err := newMailer(cfg, logger)
	if err != nil {
		return nil, err
	}
	mail = mailer.NewObserved(mail, m)

	box, err := NewSecretBox(cfg.Session.Secret)
	if err != nil {
		return nil, err
	}
	if box == nil {
		logger.Warn("Session secret is not set, TOTP secrets are stored unencrypted")
	}
	engine := twofactor.NewEngine(db, db, mail, cfg.Issuer, logger, twofactor.WithSecretBox(box))

	var providers []oauth.Provider
	google := oauth.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	}
	if google.Enabled() {
		p, err := oauth.NewGoogleProvider(ctx, google)
		if err != nil {
			return nil, fmt.Errorf("failed to configure google sign-in: %w", err)
		}
		providers = append(providers, p)
	}

	authSvc := auth.NewService(auth.Deps{
		Users:     db,
		Sessions:  sessions,
		Codes:     verification.NewStore(kv),
		TwoFactor: engine,
		Hasher:    crypto.NewHasher(cfg.Password.Iterations),
		Mailer:    mail,
		Resolver:  oauth.NewResolver(db, db, logger),
		Providers: providers,
		Logger:    logger,
	})

	secret := cfg.Session.Secret
	if secret == "" {
		// только для разработки: Validate требует секрет в production
		secret, err = crypto.RandomToken(48)
		if err != nil {
			return nil, fmt.Errorf("failed to generate state secret: %w", err)
		}
		logger.WarnContext(ctx, "session.secret is empty, using a random secret for this process")
	}

	handler := NewRouter(Deps{
		Logger:     logger,
		Auth:       authSvc,
		Sessions:   sessions,
		TwoFactor:  engine,
		Comments:   comments.NewService(db, logger),
		StateCodec: oauth.NewStateCodec(secret, cfg.IsProduction()),
		Metrics:    m,
		HealthChecks: map[string]handlers.Pinger{
			"database": db,
			"kv":       kv,
		},
		Limiters:   *limiters,
		Version:    version,
		TrustProxy: cfg.TrustProxy,
	})

	sweeper, err := jobs.NewSweeper(cfg.Sweep, SweepTasks(sessions, engine, kv), logger, m)
	if err != nil {
		return nil, err
	}

	return &App{
		Handler:  handler,
		Sweeper:  sweeper,
		DB:       db,
		KV:       kv,
		Sessions: sessions,
		Metrics:  m,
	}, nil
}

// Close releases both stores.
func (a *App) Close() error {
	return errors.Join(a.KV.Close(), a.DB.Close())
}

// NewSecretBox derives the key that encrypts TOTP secrets at rest from the
// session secret. It returns nil when no secret is configured.
func NewSecretBox(secret string) (*crypto.SecretBox, error) {
	if secret == "" {
		return nil, nil
	}
	key, err := crypto.DeriveKey(secret, "totp-secret")
	if err != nil {
		return nil, fmt.Errorf("failed to derive totp key: %w", err)
	}
	return crypto.NewSecretBox(key)
}

// NewLimiters builds one limiter per policy on the configured backend.
func NewLimiters(cfg config.RateLimitConfig, kv storage.KeyValueStore) (*Limiters, error) {
	build := func(p ratelimit.Policy) (ratelimit.Limiter, error) {
		if cfg.Backend == "local" {
			return ratelimit.NewLocal(p, ratelimit.DefaultLocalCapacity)
		}
		return ratelimit.NewStore(kv, p)
	}

	var l Limiters
	var err error
	if l.Login, err = build(cfg.Login); err != nil {
		return nil, err
	}
	if l.Register, err = build(cfg.Register); err != nil {
		return nil, err
	}
	if l.Comment, err = build(cfg.Comment); err != nil {
		return nil, err
	}
	if l.Verification, err = build(cfg.Verification); err != nil {
		return nil, err
	}
	return &l, nil
}

// SweepTasks lists the periodic cleanups. The KV store is purged only when
// it does not expire keys itself.
func SweepTasks(sessions *session.Manager, engine *twofactor.Engine, kv storage.KeyValueStore) []jobs.Task {
	tasks := []jobs.Task{
		{Name: "sessions", Sweep: sessions.Sweep},
		{Name: "two_factor_tokens", Sweep: engine.Sweep},
	}
	if p, ok := kv.(storage.Purger); ok {
		tasks = append(tasks, jobs.Task{Name: "kv", Sweep: p.PurgeExpired})
	}
	return tasks
}

func newMailer(cfg *config.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if cfg.Mail.ResendAPIKey == "" {
		logger.Warn("mail.resend_api_key is empty, emails are written to the log")
		return mailer.NewLogMailer(logger), nil
	}

	m, err := mailer.NewResend(mailer.ResendConfig{
		APIKey:  cfg.Mail.ResendAPIKey,
		From:    cfg.Mail.From,
		BaseURL: cfg.Mail.BaseURL,
		Site:    cfg.Mail.SiteName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mailer: %w", err)
	}
	return m, nil
}
