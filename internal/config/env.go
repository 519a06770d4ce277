package config

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "COMMENTAUTH_"

// applyEnv overlays COMMENTAUTH_* variables. Empty variables are ignored.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"ENV":                  &c.Env,
		"LISTEN":               &c.Listen,
		"DATABASE_DRIVER":      &c.Database.Driver,
		"DATABASE_DSN":         &c.Database.DSN,
		"KV_BACKEND":           &c.KV.Backend,
		"REDIS_URL":            &c.KV.RedisURL,
		"BOLT_PATH":            &c.KV.BoltPath,
		"KV_PREFIX":            &c.KV.Prefix,
		"SESSION_SECRET":       &c.Session.Secret,
		"TWO_FACTOR_ISSUER":    &c.Issuer,
		"GOOGLE_CLIENT_ID":     &c.Google.ClientID,
		"GOOGLE_CLIENT_SECRET": &c.Google.ClientSecret,
		"GOOGLE_REDIRECT_URL":  &c.Google.RedirectURL,
		"RESEND_API_KEY":       &c.Mail.ResendAPIKey,
		"MAIL_FROM":            &c.Mail.From,
		"RESEND_BASE_URL":      &c.Mail.BaseURL,
		"SITE_NAME":            &c.Mail.SiteName,
		"RATE_LIMIT_BACKEND":   &c.RateLimit.Backend,
		"SWEEP_SCHEDULE":       &c.Sweep,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"METRICS":     &c.Metrics,
		"TRUST_PROXY": &c.TrustProxy,
	}
	for name, dst := range bools {
		if v := getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}

	if v := getenv(envPrefix + "SESSION_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sSESSION_MAX_AGE: %w", envPrefix, err)
		}
		c.Session.MaxAge = d
	}

	if v := getenv(envPrefix + "PBKDF2_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPBKDF2_ITERATIONS: %w", envPrefix, err)
		}
		c.Password.Iterations = n
	}

	return nil
}
