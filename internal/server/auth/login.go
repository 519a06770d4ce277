package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/validation"
)

// LoginInput - запрос входа по паролю. TwoFactorCode обязателен только
// для аккаунтов с включенной 2FA
type LoginInput struct {
	Email         string
	Password      string
	TwoFactorCode string
}

// Login проверяет пароль и второй фактор и открывает сессию.
// Если пароль верный, а кода нет, возвращает apperr.ErrTwoFactorRequired
func (s *Service) Login(ctx context.Context, in LoginInput, meta session.Meta) (*Result, error) {
	switch {
	case in.Email == "":
		return nil, apperr.Required("email")
	case in.Password == "":
		return nil, apperr.Required("password")
	}

	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	if in.TwoFactorCode != "" {
		if _, err := validation.ValidateTwoFactorCode(in.TwoFactorCode); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}

	user, err := s.users.GetUserByEmail(ctx, validation.NormalizeEmail(in.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Authentication(msgInvalidCredentials)
		}
		return nil, apperr.Dependency("Failed to get user", err)
	}

	if !user.HasPassword() {
		return nil, apperr.Validation("Password login not available for this account")
	}

	if !s.hasher.Verify(in.Password, *user.PasswordHash) {
		s.logger.InfoContext(ctx, "Login failed: wrong password", slog.String("user_id", user.ID))
		return nil, apperr.Authentication(msgInvalidCredentials)
	}

	if user.TwoFactorEnabled {
		if in.TwoFactorCode == "" {
			return nil, apperr.ErrTwoFactorRequired
		}
		if err := s.twoFactor.CheckLogin(user, in.TwoFactorCode); err != nil {
			s.logger.InfoContext(ctx, "Login failed: wrong two-factor code", slog.String("user_id", user.ID))
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))

	return s.issue(ctx, user, meta)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrUserNotFound)
}
