package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/server/verification"
	"github.com/iudanet/commentauth/internal/validation"
)

// VerificationCodeLength - длина кода регистрации из письма
const VerificationCodeLength = 6

// RegisterInput - запрос регистрации
type RegisterInput struct {
	Email         string
	Username      string
	Password      string
	Code          string
	AcceptedTerms bool
}

// SendVerificationCode отправляет код регистрации на еще не занятый email
func (s *Service) SendVerificationCode(ctx context.Context, email, lang string) error {
	if email == "" {
		return apperr.Required("email")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return apperr.Validation(err.Error())
	}
	email = validation.NormalizeEmail(email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return apperr.Conflict("email", "Email already registered")
	} else if !isNotFound(err) {
		return apperr.Dependency("Failed to check email", err)
	}

	coolingDown, err := s.codes.CheckCooldown(ctx, email)
	if err != nil {
		return apperr.Dependency("Failed to check cooldown", err)
	}
	if coolingDown {
		return apperr.RateLimited("Please wait 60 seconds before requesting a new code", verification.CooldownTTL)
	}

	code, err := crypto.RandomToken(VerificationCodeLength)
	if err != nil {
		return apperr.Dependency("Failed to generate code", err)
	}

	if err := s.codes.SetCode(ctx, email, code); err != nil {
		return apperr.Dependency("Failed to store verification code", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code, lang); err != nil {
		return apperr.Dependency("Failed to send verification email", err)
	}

	s.logger.InfoContext(ctx, "Verification code sent", slog.String("lang", lang))
	return nil
}

// Register создает аккаунт с паролем по подтвержденному email и сразу открывает сессию
func (s *Service) Register(ctx context.Context, in RegisterInput, meta session.Meta) (*Result, error) {
	switch {
	case in.Email == "":
		return nil, apperr.Required("email")
	case in.Username == "":
		return nil, apperr.Required("username")
	case in.Password == "":
		return nil, apperr.Required("password")
	case in.Code == "":
		return nil, apperr.Required("code")
	}

	if !in.AcceptedTerms {
		return nil, apperr.Validation("You must accept the Terms of Service and Privacy Policy")
	}

	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	email := validation.NormalizeEmail(in.Email)

	stored, ok, err := s.codes.GetCode(ctx, email)
	if err != nil {
		return nil, apperr.Dependency("Failed to read verification code", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(in.Code)) != 1 {
		return nil, apperr.Validation("Invalid or expired verification code")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Dependency("Failed to hash password", err)
	}

	now := time.Now()
	user := &models.User{
		ID:            crypto.NewID(),
		Email:         email,
		Username:      in.Username,
		PasswordHash:  &hash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if field, ok := storage.UniqueField(err); ok {
			if field == "username" {
				return nil, apperr.Conflict(field, "Username already taken")
			}
			return nil, apperr.Conflict("email", "Email already registered")
		}
		return nil, apperr.Dependency("Failed to create user", err)
	}

	if err := s.codes.DeleteCode(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete verification code",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	return s.issue(ctx, user, meta)
}
