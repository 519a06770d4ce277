// Package authctl implements the operator commands of the authctl tool:
// password hashing, TOTP inspection and maintenance against the configured
// stores.
package authctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/commentauth/internal/config"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/server"
	"github.com/iudanet/commentauth/internal/server/jobs"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/internal/validation"
)

// ErrPasswordMismatch is returned when a password does not match its hash
// or its confirmation.
var ErrPasswordMismatch = errors.New("passwords do not match")

// PrintUsage prints available commands
func PrintUsage(out IO) {
	out.Println("Usage: authctl [flags] <command> [args]")
	out.Println("")
	out.Println("Commands:")
	out.Println("  hash                 Hash a password with the configured KDF")
	out.Println("  verify-hash <hash>   Check a password against a stored hash")
	out.Println("  totp <secret>        Print the current TOTP code for a secret")
	out.Println("  sweep                Delete expired sessions, 2FA codes and KV entries")
	out.Println("  revoke <email>       Sign a user out of every session")
	out.Println("")
	out.Println("Flags are the server flags, e.g. -config, -db-driver, -db-dsn, -kv.")
}

// RunHash prompts for a password twice and prints its hash.
func RunHash(out IO, hasher *crypto.Hasher) error {
	password, err := out.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if strength, err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("weak password (%s): %w", strength, err)
	}

	confirm, err := out.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if confirm != password {
		return ErrPasswordMismatch
	}

	encoded, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	out.Println(encoded)
	return nil
}

// RunVerifyHash prompts for a password and checks it against encoded.
func RunVerifyHash(out IO, hasher *crypto.Hasher, encoded string) error {
	password, err := out.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if !hasher.Verify(password, encoded) {
		return ErrPasswordMismatch
	}
	out.Println("✓ Password matches")
	return nil
}

// RunTOTP prints the code for secret at now and how long it stays valid.
func RunTOTP(out IO, secret string, now time.Time) error {
	code, err := crypto.GenerateTOTP(secret, now)
	if err != nil {
		return err
	}

	period := int64(crypto.TOTPPeriod / time.Second)
	left := period - now.Unix()%period
	out.Printf("%s (valid for %ds)\n", code, left)
	return nil
}

// RunSweep runs every sweep task once against the configured stores.
func RunSweep(ctx context.Context, out IO, cfg *config.Config, logger *slog.Logger) error {
	db, kv, err := server.Stores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores(logger, db, kv)

	sessions := session.NewManager(db, cfg.Session.MaxAge, logger)
	engine := twofactor.NewEngine(db, db, nil, cfg.Issuer, logger)

	sweeper, err := jobs.NewSweeper(jobs.DefaultSchedule, server.SweepTasks(sessions, engine, kv), logger, nil)
	if err != nil {
		return err
	}

	out.Printf("Removed %d expired records\n", sweeper.RunOnce(ctx))
	return nil
}

// RunRevoke deletes every session of the user with email.
func RunRevoke(ctx context.Context, out IO, cfg *config.Config, logger *slog.Logger, email string) error {
	db, kv, err := server.Stores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores(logger, db, kv)

	return revoke(ctx, out, db, session.NewManager(db, cfg.Session.MaxAge, logger), email)
}

func revoke(ctx context.Context, out IO, users storage.UserStorage, sessions *session.Manager, email string) error {
	user, err := users.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("no user with email %s", email)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	n, err := sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	out.Printf("Revoked %d session(s) of %s\n", n, user.Username)
	return nil
}

type closer interface {
	Close() error
}

func closeStores(logger *slog.Logger, stores ...closer) {
	for _, s := range stores {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}
}
