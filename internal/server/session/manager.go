// Package session выдает и проверяет непрозрачные токены сессий. Токен -
// случайная bearer-строка без вложенных claims, смысл у него появляется
// только после поиска в хранилище сессий.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

// DefaultMaxAge - время жизни сессии по умолчанию (30 дней)
const DefaultMaxAge = 30 * 24 * time.Hour

// issueAttempts ограничивает число повторов при коллизии токена
const issueAttempts = 3

// ErrSessionInvalid возвращается для неизвестных, отозванных и просроченных токенов
var ErrSessionInvalid = errors.New("session invalid")

// Meta - справочные данные запроса, сохраняемые вместе с сессией
type Meta struct {
	UserAgent string
	IPAddress string
}

// Manager управляет жизненным циклом сессий
type Manager struct {
	store  storage.SessionStorage
	logger *slog.Logger
	now    func() time.Time
	maxAge time.Duration
	secure bool
}

// Option настраивает Manager
type Option func(*Manager)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSecureCookie выставляет атрибут Secure у cookie сессии
func WithSecureCookie(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// NewManager создает менеджер сессий
func NewManager(store storage.SessionStorage, maxAge time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	m := &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		maxAge: maxAge,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MaxAge возвращает настроенное время жизни сессии
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Issue создает новую сессию для userID
func (m *Manager) Issue(ctx context.Context, userID string, meta Meta) (*models.Session, error) {
	now := m.now()

	for attempt := 1; ; attempt++ {
		token, err := crypto.SessionToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session token: %w", err)
		}

		sess := &models.Session{
			ID:        crypto.NewID(),
			UserID:    userID,
			Token:     token,
			ExpiresAt: now.Add(m.maxAge),
			CreatedAt: now,
			UserAgent: optional(meta.UserAgent),
			IPAddress: optional(meta.IPAddress),
		}

		err = m.store.CreateSession(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= issueAttempts {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}

		m.logger.WarnContext(ctx, "session token collision, retrying", slog.Int("attempt", attempt))
	}
}

// Validate находит живую сессию по токену. Просроченные записи удаляются
// сразу, не дожидаясь периодической очистки
func (m *Manager) Validate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	sess, err := m.store.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if sess.Expired(m.now()) {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session",
				slog.String("session_id", sess.ID),
				slog.Any("error", err))
		}
		return nil, ErrSessionInvalid
	}

	return sess, nil
}

// Revoke удаляет сессию с токеном. Неизвестные токены игнорируются
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.DeleteSession(ctx, token)
}

// RevokeAll удаляет все сессии пользователя
func (m *Manager) RevokeAll(ctx context.Context, userID string) (int, error) {
	return m.store.DeleteUserSessions(ctx, userID)
}

// Sweep удаляет просроченные сессии
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpiredSessions(ctx, m.now())
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
