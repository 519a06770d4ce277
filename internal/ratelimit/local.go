package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLocalCapacity ограничивает число отслеживаемых ключей
const DefaultLocalCapacity = 10000

// window - попытки одного ключа
type window struct {
	start time.Time
	count int
}

// Local - лимитер в памяти процесса. Состояние хранится в LRU, поток
// разных ключей вытесняет самые старые вместо роста памяти.
// Между инстансами счетчики не делятся.
type Local struct {
	windows *lru.Cache[string, *window]
	now     func() time.Time
	policy  Policy
	mu      sync.Mutex
}

// NewLocal создает локальный лимитер не больше чем на capacity ключей
func NewLocal(policy Policy, capacity int, opts ...Option) (*Local, error) {
	if policy.MaxRequests <= 0 || policy.Window <= 0 {
		return nil, fmt.Errorf("invalid rate limit policy %q", policy.Name)
	}
	if capacity <= 0 {
		capacity = DefaultLocalCapacity
	}

	cache, err := lru.New[string, *window](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	o := buildOptions(opts)

	return &Local{
		windows: cache,
		now:     o.now,
		policy:  policy,
	}, nil
}

// Policy возвращает лимит
func (l *Local) Policy() Policy {
	return l.policy
}

// Check учитывает попытку по ключу
func (l *Local) Check(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= l.policy.Window {
		w = &window{start: now}
		l.windows.Add(key, w)
	}
	w.count++

	return decide(l.policy, w.count, w.start.Add(l.policy.Window)), nil
}

// Len возвращает число отслеживаемых ключей
func (l *Local) Len() int {
	return l.windows.Len()
}
