// Package config loads server settings: defaults, then an optional YAML
// file, then COMMENTAUTH_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/ratelimit"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds runtime settings for the server.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	KV        KVConfig        `yaml:"kv"`
	Google    GoogleConfig    `yaml:"google"`
	Mail      MailConfig      `yaml:"mail"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Env       string          `yaml:"env"`
	Listen    string          `yaml:"listen"`
	Issuer    string          `yaml:"two_factor_issuer"` // имя в приложении-аутентификаторе
	Sweep     string          `yaml:"sweep_schedule"`    // cron spec
	Password  PasswordConfig  `yaml:"password"`
	Metrics   bool            `yaml:"metrics"`
	// TrustProxy включает чтение IP клиента из заголовков прокси
	TrustProxy bool `yaml:"trust_proxy"`

	ShowVersion bool `yaml:"-"`
	// Args are the positional arguments left after the flags.
	Args []string `yaml:"-"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// KVConfig selects the TTL key-value store.
type KVConfig struct {
	Backend  string `yaml:"backend"` // redis | bolt
	RedisURL string `yaml:"redis_url"`
	BoltPath string `yaml:"bolt_path"`
	Prefix   string `yaml:"prefix"`
}

// SessionConfig configures cookies and signed state.
type SessionConfig struct {
	Secret string        `yaml:"secret"` // подпись cookie oauth_state
	MaxAge time.Duration `yaml:"max_age"`
}

// PasswordConfig configures the password KDF.
type PasswordConfig struct {
	Iterations int `yaml:"iterations"`
}

// GoogleConfig holds OAuth client credentials. Empty ClientID disables Google sign-in.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// MailConfig configures transactional email.
type MailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
	BaseURL      string `yaml:"base_url"`
	SiteName     string `yaml:"site_name"`
}

// RateLimitConfig holds the limiter backend and per-class policies.
type RateLimitConfig struct {
	Backend      string           `yaml:"backend"` // local | kv
	Login        ratelimit.Policy `yaml:"login"`
	Register     ratelimit.Policy `yaml:"register"`
	Comment      ratelimit.Policy `yaml:"comment"`
	Verification ratelimit.Policy `yaml:"verification"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns development defaults.
func Default() *Config {
	return &Config{
		Env:    EnvDevelopment,
		Listen: ":8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "commentauth.db",
		},
		KV: KVConfig{
			Backend:  "bolt",
			BoltPath: "commentauth-kv.db",
			Prefix:   "commentauth:",
		},
		Session: SessionConfig{
			MaxAge: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Iterations: crypto.DefaultIterations,
		},
		Issuer: "Comments",
		Mail: MailConfig{
			From:     "noreply@example.com",
			SiteName: "Comments",
		},
		RateLimit: RateLimitConfig{
			Backend:      "kv",
			Login:        ratelimit.LoginPolicy,
			Register:     ratelimit.RegisterPolicy,
			Comment:      ratelimit.CommentPolicy,
			Verification: ratelimit.VerificationPolicy,
		},
		Sweep: "@every 1h",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: true,
	}
}

// Load builds a Config from defaults, the YAML file named by -config or
// COMMENTAUTH_CONFIG, the environment and finally args.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fs, fv := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	path := fv.configPath
	if path == "" {
		path = getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fv.apply(fs, cfg)
	cfg.Args = fs.Args()

	return cfg, nil
}

// IsProduction reports whether cookies must be Secure and mail must be real.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("unknown env %q", c.Env))
	}

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}

	switch c.KV.Backend {
	case "redis":
		if c.KV.RedisURL == "" {
			errs = append(errs, errors.New("kv.redis_url is required for the redis backend"))
		}
	case "bolt":
		if c.KV.BoltPath == "" {
			errs = append(errs, errors.New("kv.bolt_path is required for the bolt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kv backend %q", c.KV.Backend))
	}

	if c.IsProduction() {
		if len(c.Session.Secret) < 32 {
			errs = append(errs, errors.New("session.secret of at least 32 characters is required in production"))
		}
		if c.Mail.ResendAPIKey == "" {
			errs = append(errs, errors.New("mail.resend_api_key is required in production"))
		}
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("session.max_age must be positive"))
	}

	if c.Password.Iterations < crypto.DefaultIterations {
		errs = append(errs, fmt.Errorf("password.iterations must be at least %d", crypto.DefaultIterations))
	}

	if c.Google.ClientID != "" || c.Google.ClientSecret != "" {
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RedirectURL == "" {
			errs = append(errs, errors.New("google client_id, client_secret and redirect_url must be set together"))
		}
	}

	if c.Mail.ResendAPIKey != "" && c.Mail.From == "" {
		errs = append(errs, errors.New("mail.from is required when resend is enabled"))
	}

	switch c.RateLimit.Backend {
	case "local", "kv":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}
	for _, p := range []ratelimit.Policy{c.RateLimit.Login, c.RateLimit.Register, c.RateLimit.Comment, c.RateLimit.Verification} {
		if p.MaxRequests <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit policy %q must have positive max_requests and window", p.Name))
		}
	}

	if c.Sweep == "" {
		errs = append(errs, errors.New("sweep_schedule is required"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by c.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
