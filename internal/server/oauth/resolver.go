package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
	"github.com/iudanet/commentauth/internal/validation"
)

const maxUsernameAttempts = 50

// ErrUnverifiedEmail возвращается, если неподтвержденный email провайдера
// совпал с существующим локальным аккаунтом
var ErrUnverifiedEmail = errors.New("provider email is not verified")

// Resolver сопоставляет внешний аккаунт с локальным пользователем
type Resolver struct {
	users    storage.UserStorage
	accounts storage.OAuthAccountStorage
	logger   *slog.Logger
	now      func() time.Time
}

// NewResolver создает Resolver
func NewResolver(users storage.UserStorage, accounts storage.OAuthAccountStorage, logger *slog.Logger) *Resolver {
	return &Resolver{
		users:    users,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve возвращает локального пользователя. По порядку: уже привязанный
// аккаунт, затем пользователь с тем же email (аккаунт привязывается),
// иначе создается новый пользователь. Токены обновляются каждый раз.
func (r *Resolver) Resolve(ctx context.Context, provider string, info *UserInfo, token *oauth2.Token) (*models.User, error) {
	account, err := r.accounts.GetOAuthAccount(ctx, provider, info.Subject)
	switch {
	case err == nil:
		user, err := r.users.GetUserByID(ctx, account.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get linked user: %w", err)
		}
		if err := r.link(ctx, user.ID, provider, info, token); err != nil {
			return nil, err
		}
		return user, nil
	case !errors.Is(err, storage.ErrOAuthAccountNotFound):
		return nil, fmt.Errorf("failed to get oauth account: %w", err)
	}

	user, err := r.users.GetUserByEmail(ctx, info.Email)
	switch {
	case err == nil:
		if !info.EmailVerified {
			return nil, ErrUnverifiedEmail
		}
		r.logger.InfoContext(ctx, "Linking oauth identity to existing user",
			slog.String("provider", provider),
			slog.String("user_id", user.ID),
		)
	case errors.Is(err, storage.ErrUserNotFound):
		user, err = r.createUser(ctx, info)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := r.link(ctx, user.ID, provider, info, token); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Resolver) createUser(ctx context.Context, info *UserInfo) (*models.User, error) {
	base := DeriveUsername(info.Name, info.Email)

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := UsernameCandidate(base, attempt)
		if validation.IsReservedUsername(username) {
			continue
		}

		_, err := r.users.GetUserByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}

		now := r.now()
		user := &models.User{
			ID:            crypto.NewID(),
			Email:         info.Email,
			Username:      username,
			AvatarURL:     optional(info.AvatarURL),
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = r.users.CreateUser(ctx, user)
		if err == nil {
			r.logger.InfoContext(ctx, "User created from oauth profile",
				slog.String("user_id", user.ID),
				slog.String("username", username),
			)
			return user, nil
		}

		field, ok := storage.UniqueField(err)
		switch {
		case ok && field == "username":
			// заняли между проверкой и вставкой
			continue
		case ok && field == "email":
			return r.users.GetUserByEmail(ctx, info.Email)
		default:
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	return nil, fmt.Errorf("no free username for %q after %d attempts", base, maxUsernameAttempts)
}

func (r *Resolver) link(ctx context.Context, userID, provider string, info *UserInfo, token *oauth2.Token) error {
	now := r.now()

	account := &models.OAuthAccount{
		ID:                crypto.NewID(),
		UserID:            userID,
		Provider:          provider,
		ProviderUserID:    info.Subject,
		ProviderEmail:     optional(info.Email),
		ProviderUsername:  optional(info.Name),
		ProviderAvatarURL: optional(info.AvatarURL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if token != nil {
		account.AccessToken = optional(token.AccessToken)
		account.RefreshToken = optional(token.RefreshToken)
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			account.ExpiresAt = &expiry
		}
	}

	if err := r.accounts.UpsertOAuthAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to save oauth account: %w", err)
	}

	return nil
}

// DeriveUsername делает из отображаемого имени (или локальной части email)
// основу для username длиной от 3 до 20 символов
func DeriveUsername(name, email string) string {
	base := usernameChars(name)
	if base == "" {
		local, _, _ := strings.Cut(email, "@")
		base = usernameChars(local)
	}
	if base == "" {
		base = "user"
	}

	for len(base) < validation.MinUsernameLen {
		base += "_"
	}
	if len(base) > validation.MaxUsernameLen {
		base = base[:validation.MaxUsernameLen]
	}

	return base
}

// UsernameCandidate возвращает base для попытки 0 и base<attempt> дальше,
// обрезая base, чтобы уложиться в лимит длины
func UsernameCandidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}

	suffix := strconv.Itoa(attempt)
	if len(base)+len(suffix) > validation.MaxUsernameLen {
		base = base[:validation.MaxUsernameLen-len(suffix)]
	}

	return base + suffix
}

func usernameChars(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
