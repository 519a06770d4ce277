// Package verification keeps short-lived email verification codes and the
// resend cooldown in the shared key-value store.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/commentauth/internal/server/storage"
)

const (
	// CodeTTL is how long an emailed code stays valid.
	CodeTTL = 300 * time.Second
	// CooldownTTL is the minimum delay between two codes for one email.
	CooldownTTL = 60 * time.Second

	codePrefix     = "verify:"
	cooldownPrefix = "cooldown:"
)

// Store is the verification code store
type Store struct {
	kv storage.KeyValueStore
}

// NewStore creates a Store on top of kv
func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetCode stores code for email and starts the cooldown
func (s *Store) SetCode(ctx context.Context, email, code string) error {
	email = normalize(email)

	if err := s.kv.Set(ctx, codePrefix+email, code, CodeTTL); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	if err := s.kv.Set(ctx, cooldownPrefix+email, "1", CooldownTTL); err != nil {
		return fmt.Errorf("failed to store cooldown: %w", err)
	}

	return nil
}

// GetCode returns the pending code for email. ok is false when no code is
// pending or it has expired.
func (s *Store) GetCode(ctx context.Context, email string) (string, bool, error) {
	code, err := s.kv.Get(ctx, codePrefix+normalize(email))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read verification code: %w", err)
	}

	return code, true, nil
}

// DeleteCode drops the pending code for email
func (s *Store) DeleteCode(ctx context.Context, email string) error {
	if err := s.kv.Delete(ctx, codePrefix+normalize(email)); err != nil {
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}

// CheckCooldown reports whether a code was sent to email less than
// CooldownTTL ago
func (s *Store) CheckCooldown(ctx context.Context, email string) (bool, error) {
	_, err := s.kv.Get(ctx, cooldownPrefix+normalize(email))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cooldown: %w", err)
	}

	return true, nil
}
