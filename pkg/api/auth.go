package api

import (
	"time"

	"github.com/iudanet/commentauth/internal/models"
)

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Code          string `json:"code"` // код из письма подтверждения
	AcceptedTerms bool   `json:"acceptedTerms"`
}

// LoginRequest представляет запрос на вход по паролю
type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"` // только если включена 2FA
}

// VerificationRequest представляет запрос на отправку кода подтверждения
type VerificationRequest struct {
	Email string `json:"email"`
	Lang  string `json:"lang,omitempty"` // язык письма, по умолчанию en
}

// TwoFactorEnableRequest подтверждает включение 2FA
type TwoFactorEnableRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}

// TwoFactorCodeRequest представляет запрос с одним кодом 2FA
type TwoFactorCodeRequest struct {
	Code string `json:"code"`
	Type string `json:"type,omitempty"` // totp | email
}

// OAuthCallbackRequest представляет POST вариант OAuth callback
type OAuthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// PublicUser - поля пользователя, возвращаемые после регистрации и входа
type PublicUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"email_verified"`
}

// Profile - полный профиль текущего пользователя
type Profile struct {
	CreatedAt        time.Time `json:"created_at"`
	AvatarURL        *string   `json:"avatar_url"`
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	EmailVerified    bool      `json:"email_verified"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
}

// NewPublicUser строит PublicUser из модели
func NewPublicUser(u *models.User) PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		EmailVerified: u.EmailVerified,
	}
}

// NewProfile строит Profile из модели
func NewProfile(u *models.User) Profile {
	return Profile{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		AvatarURL:        u.AvatarURL,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// UserResponse представляет ответ с пользователем
type UserResponse struct {
	Message string     `json:"message,omitempty"`
	User    PublicUser `json:"user"`
}

// ProfileResponse представляет ответ GET /auth/me
type ProfileResponse struct {
	User Profile `json:"user"`
}

// OAuthStartResponse содержит URL страницы согласия провайдера
type OAuthStartResponse struct {
	AuthURL string `json:"authUrl"`
}

// MessageResponse представляет ответ с одним сообщением
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error             string `json:"error"`                       // описание ошибки
	RequiresTwoFactor bool   `json:"requiresTwoFactor,omitempty"` // пароль верный, нужен второй фактор
}
