// Package ratelimit считает запросы клиента в фиксированном окне.
// Каждый вызов Check учитывается как попытка, даже отклоненный.
package ratelimit

import (
	"context"
	"time"
)

// Policy - именованный лимит: не больше MaxRequests попыток за Window
type Policy struct {
	Name        string        `yaml:"name"`
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Политики по умолчанию для классов эндпоинтов
var (
	LoginPolicy        = Policy{Name: "login", MaxRequests: 5, Window: 15 * time.Minute}
	RegisterPolicy     = Policy{Name: "register", MaxRequests: 3, Window: time.Hour}
	CommentPolicy      = Policy{Name: "comment", MaxRequests: 10, Window: time.Hour}
	VerificationPolicy = Policy{Name: "verification", MaxRequests: 5, Window: time.Hour}
)

// Decision - результат одного Check
type Decision struct {
	ResetTime time.Time // конец текущего окна
	Remaining int       // остаток попыток в окне, не меньше нуля
	Allowed   bool
}

// RetryAfter возвращает, сколько клиенту ждать относительно now
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetTime.After(now) {
		return d.ResetTime.Sub(now)
	}
	return 0
}

// Limiter учитывает попытку по ключу и решает, разрешена ли она
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
	Policy() Policy
}

// Option настраивает лимитер
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func decide(p Policy, count int, reset time.Time) Decision {
	remaining := p.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= p.MaxRequests,
		Remaining: remaining,
		ResetTime: reset,
	}
}
