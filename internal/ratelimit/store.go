package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/commentauth/internal/server/storage"
)

// Store - лимитер поверх общего key-value хранилища. Счетчики лежат
// под "ratelimit:<policy>:<key>" и истекают вместе с окном, поэтому все
// инстансы с общим хранилищем соблюдают один лимит.
type Store struct {
	kv     storage.KeyValueStore
	now    func() time.Time
	policy Policy
}

// NewStore создает лимитер поверх KV
func NewStore(kv storage.KeyValueStore, policy Policy, opts ...Option) (*Store, error) {
	if policy.MaxRequests <= 0 || policy.Window <= 0 {
		return nil, fmt.Errorf("invalid rate limit policy %q", policy.Name)
	}

	o := buildOptions(opts)

	return &Store{kv: kv, now: o.now, policy: policy}, nil
}

// Policy возвращает лимит
func (s *Store) Policy() Policy {
	return s.policy
}

// Check учитывает попытку по ключу
func (s *Store) Check(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := s.kv.Incr(ctx, s.key(key), s.policy.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count request: %w", err)
	}

	if ttl <= 0 {
		ttl = s.policy.Window
	}

	return decide(s.policy, int(count), s.now().Add(ttl)), nil
}

func (s *Store) key(key string) string {
	return "ratelimit:" + s.policy.Name + ":" + key
}
