// Package auth реализует сценарии аккаунта: регистрацию по коду из письма,
// вход по паролю со вторым фактором, вход через OAuth-провайдера
// и проверку сессии для авторизованных запросов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/mailer"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/internal/server/verification"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidSession     = "Invalid session"
	msgSessionFailed      = "Failed to create session"
)

// Result - успешный вход
type Result struct {
	User    *models.User
	Session *models.Session
}

// Deps - зависимости Service
type Deps struct {
	Users     storage.UserStorage
	Sessions  *session.Manager
	Codes     *verification.Store
	TwoFactor *twofactor.Engine
	Hasher    *crypto.Hasher
	Mailer    mailer.Mailer
	Resolver  *oauth.Resolver
	Providers []oauth.Provider
	Logger    *slog.Logger
}

// Service реализует сценарии аккаунта
type Service struct {
	users     storage.UserStorage
	sessions  *session.Manager
	codes     *verification.Store
	twoFactor *twofactor.Engine
	hasher    *crypto.Hasher
	mailer    mailer.Mailer
	resolver  *oauth.Resolver
	providers map[string]oauth.Provider
	logger    *slog.Logger
}

// NewService создает Service
func NewService(deps Deps) *Service {
	providers := make(map[string]oauth.Provider, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p.Name()] = p
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = crypto.NewHasher(crypto.DefaultIterations)
	}

	return &Service{
		users:     deps.Users,
		sessions:  deps.Sessions,
		codes:     deps.Codes,
		twoFactor: deps.TwoFactor,
		hasher:    hasher,
		mailer:    deps.Mailer,
		resolver:  deps.Resolver,
		providers: providers,
		logger:    deps.Logger,
	}
}

// Authenticate находит пользователя по токену сессии
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	sess, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionInvalid) {
			return nil, nil, apperr.Authentication(msgInvalidSession)
		}
		return nil, nil, apperr.Dependency("Failed to validate session", err)
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			if err := s.sessions.Revoke(ctx, token); err != nil {
				s.logger.WarnContext(ctx, "Failed to revoke session of missing user",
					slog.String("session_id", sess.ID),
					slog.String("user_id", sess.UserID),
					slog.Any("error", err))
			}
			return nil, nil, apperr.Authentication(msgInvalidSession)
		}
		return nil, nil, apperr.Dependency("Failed to load user", err)
	}

	return user, sess, nil
}

// Logout удаляет сессию. Неизвестный токен ошибкой не считается
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return apperr.Dependency("Failed to delete session", err)
	}
	return nil
}

// SendTwoFactorEmail отправляет код входа авторизованному пользователю
func (s *Service) SendTwoFactorEmail(ctx context.Context, user *models.User) error {
	return s.twoFactor.IssueEmailChallenge(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *models.User, meta session.Meta) (*Result, error) {
	sess, err := s.sessions.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, apperr.Dependency(msgSessionFailed, err)
	}
	return &Result{User: user, Session: sess}, nil
}

func (s *Service) provider(name string) (oauth.Provider, error) {
	p, ok := s.providers[name]
	if !ok || s.resolver == nil {
		return nil, apperr.Dependency(fmt.Sprintf("%s OAuth not configured", providerTitle(name)), nil)
	}
	return p, nil
}

func providerTitle(name string) string {
	if name == "" {
		return "Provider"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
