// Package twofactor реализует подключение и проверку TOTP
// и одноразовые коды по email.
//
// Состояния пользователя: выключено -> подключение (секрет выдан, ничего
// не сохранено) -> включено (секрет подтвержден кодом) -> запрос кода при
// входе или чувствительном действии -> подтверждено или отклонено.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/validation"
)

// EmailCodeTTL - время жизни кода 2FA из письма
const EmailCodeTTL = 5 * time.Minute

const emailCodeDigits = 6

// Method определяет способ ответа на запрос второго фактора
type Method string

const (
	MethodTOTP  Method = "totp"
	MethodEmail Method = "email"
)

// Сообщения для клиента
const (
	msgAlreadyEnabled = "Two-factor authentication is already enabled"
	msgNotEnabled     = "Two-factor authentication is not enabled"
	msgInvalidCode    = "Invalid verification code"
	msgMisconfigured  = "Two-factor authentication not properly configured"
)

// Mailer доставляет коды 2FA по email
type Mailer interface {
	SendTwoFactorCode(ctx context.Context, to, code string) error
}

// Setup отдается клиенту при начале подключения
type Setup struct {
	Secret     string `json:"secret"`
	Issuer     string `json:"issuer"`
	Username   string `json:"username"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// Engine управляет состояниями двухфакторной аутентификации
type Engine struct {
	users  storage.UserStorage
	tokens storage.TwoFactorTokenStorage
	mailer Mailer
	logger *slog.Logger
	box    *crypto.SecretBox
	now    func() time.Time
	issuer string
	window int
}

// Option настраивает Engine
type Option func(*Engine)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithWindow задает сколько шагов TOTP принимается в каждую сторону от текущего
func WithWindow(window int) Option {
	return func(e *Engine) {
		if window >= 0 {
			e.window = window
		}
	}
}

// WithSecretBox включает шифрование TOTP-секретов перед сохранением
func WithSecretBox(box *crypto.SecretBox) Option {
	return func(e *Engine) {
		e.box = box
	}
}

// NewEngine создает движок 2FA
func NewEngine(
	users storage.UserStorage,
	tokens storage.TwoFactorTokenStorage,
	mailer Mailer,
	issuer string,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
		issuer: issuer,
		window: crypto.TOTPWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BeginEnable генерирует новый секрет для пользователя.
// До успешного ConfirmEnable ничего не сохраняется
func (e *Engine) BeginEnable(user *models.User) (*Setup, error) {
	if user.TwoFactorEnabled {
		return nil, apperr.Validation(msgAlreadyEnabled)
	}

	secret, err := crypto.Base32Secret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	uri, err := crypto.ProvisioningURI(secret, e.issuer, user.Username)
	if err != nil {
		return nil, err
	}

	return &Setup{
		Secret:     secret,
		Issuer:     e.issuer,
		Username:   user.Username,
		OTPAuthURL: uri,
	}, nil
}

// ConfirmEnable проверяет владение секретом по коду и включает 2FA
func (e *Engine) ConfirmEnable(ctx context.Context, userID, secret, code string) error {
	if secret == "" || code == "" {
		return apperr.Validation("Secret and code are required")
	}
	if err := crypto.ValidateTOTPSecret(secret); err != nil {
		return apperr.Validation("Invalid two-factor secret")
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.TwoFactorEnabled {
		return apperr.Validation(msgAlreadyEnabled)
	}

	if !e.VerifyTOTP(secret, code) {
		return apperr.Validation(msgInvalidCode)
	}

	stored, err := e.box.Seal(secret)
	if err != nil {
		return fmt.Errorf("failed to seal totp secret: %w", err)
	}
	if err := e.users.SetTwoFactor(ctx, userID, true, &stored); err != nil {
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}

	e.logger.InfoContext(ctx, "two-factor authentication enabled", slog.String("user_id", userID))
	return nil
}

// Disable выключает 2FA. Нужен актуальный код TOTP, чтобы одной
// украденной сессии не хватало для снятия второго фактора
func (e *Engine) Disable(ctx context.Context, userID, code string) error {
	if code == "" {
		return apperr.Validation("Verification code is required")
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.TwoFactorEnabled {
		return apperr.Validation(msgNotEnabled)
	}
	secret, err := e.secretOf(user)
	if err != nil {
		return err
	}

	if !e.VerifyTOTP(secret, code) {
		return apperr.Validation(msgInvalidCode)
	}

	if err := e.users.SetTwoFactor(ctx, userID, false, nil); err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}

	e.logger.InfoContext(ctx, "two-factor authentication disabled", slog.String("user_id", userID))
	return nil
}

// VerifyTOTP проверяет код по секрету на текущее время движка
func (e *Engine) VerifyTOTP(secret, code string) bool {
	normalized, err := validation.ValidateTwoFactorCode(code)
	if err != nil {
		return false
	}
	return crypto.VerifyTOTP(secret, normalized, e.now(), e.window)
}

// secretOf возвращает расшифрованный TOTP-секрет пользователя
func (e *Engine) secretOf(user *models.User) (string, error) {
	if user.TwoFactorSecret == nil {
		return "", apperr.Dependency(msgMisconfigured, errors.New("two-factor enabled without secret"))
	}
	secret, err := e.box.Open(*user.TwoFactorSecret)
	if err != nil {
		return "", apperr.Dependency(msgMisconfigured, err)
	}
	return secret, nil
}

// CheckLogin проверяет код TOTP, переданный при входе по паролю
func (e *Engine) CheckLogin(user *models.User, code string) error {
	secret, err := e.secretOf(user)
	if err != nil {
		return err
	}
	if !e.VerifyTOTP(secret, code) {
		return apperr.Authentication("Invalid two-factor code")
	}
	return nil
}

// IssueEmailChallenge сохраняет одноразовый числовой код
// и отправляет его пользователю на почту
func (e *Engine) IssueEmailChallenge(ctx context.Context, user *models.User) error {
	if !user.TwoFactorEnabled {
		return apperr.Validation(msgNotEnabled)
	}

	code, err := crypto.NumericCode(emailCodeDigits)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	now := e.now()
	token := &models.TwoFactorToken{
		ID:        crypto.NewID(),
		UserID:    user.ID,
		Token:     code,
		Type:      models.TwoFactorTokenEmail,
		ExpiresAt: now.Add(EmailCodeTTL),
		CreatedAt: now,
	}
	if err := e.tokens.CreateTwoFactorToken(ctx, token); err != nil {
		return fmt.Errorf("failed to store two-factor token: %w", err)
	}

	if err := e.mailer.SendTwoFactorCode(ctx, user.Email, code); err != nil {
		return apperr.Dependency("Failed to send verification email", err)
	}

	return nil
}

// VerifyEmailCode погашает ожидающий email-код пользователя
func (e *Engine) VerifyEmailCode(ctx context.Context, userID, code string) error {
	normalized, err := validation.ValidateTwoFactorCode(code)
	if err != nil {
		return apperr.Validation(msgInvalidCode)
	}

	err = e.tokens.ConsumeTwoFactorToken(ctx, userID, normalized, models.TwoFactorTokenEmail, e.now())
	if err != nil {
		if errors.Is(err, storage.ErrTwoFactorTokenNotFound) {
			return apperr.Validation(msgInvalidCode)
		}
		return fmt.Errorf("failed to consume two-factor token: %w", err)
	}

	return nil
}

// Verify проверяет ответ пользователя на запрос выбранным способом
func (e *Engine) Verify(ctx context.Context, user *models.User, code string, method Method) error {
	if code == "" {
		return apperr.Required("code")
	}
	if !user.TwoFactorEnabled {
		return apperr.Validation(msgNotEnabled)
	}

	switch method {
	case MethodTOTP, "":
		secret, err := e.secretOf(user)
		if err != nil {
			return err
		}
		if !e.VerifyTOTP(secret, code) {
			return apperr.Validation(msgInvalidCode)
		}
		return nil
	case MethodEmail:
		return e.VerifyEmailCode(ctx, user.ID, code)
	default:
		return apperr.Validation("Invalid verification type")
	}
}

// Sweep удаляет использованные и просроченные email-коды
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	return e.tokens.DeleteSpentTwoFactorTokens(ctx, e.now())
}
