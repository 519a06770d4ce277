// Package oauth реализует вход через Google: authorization code flow с PKCE,
// подписанный state в cookie и привязку внешних аккаунтов к локальным
// пользователям.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Адреса Google
const (
	GoogleIssuer      = "https://accounts.google.com"
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	GoogleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
)

// ErrIncompleteProfile возвращается, если провайдер не отдал subject или email
var ErrIncompleteProfile = errors.New("provider returned an incomplete profile")

// UserInfo - нормализованный профиль от провайдера
type UserInfo struct {
	Subject       string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
}

// Provider - внешний провайдер идентификации
type Provider interface {
	Name() string
	AuthCodeURL(state, challenge string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// GoogleConfig хранит учетные данные клиента. Пустые адреса заменяются
// боевыми адресами Google
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Enabled сообщает, заданы ли учетные данные
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// GoogleProvider работает с OAuth 2.0 и userinfo Google
type GoogleProvider struct {
	oauth2Config *oauth2.Config
	provider     *oidc.Provider
}

// NewGoogleProvider создает провайдера без discovery
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) (*GoogleProvider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("google client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("google redirect url is required")
	}

	authURL := orDefault(cfg.AuthURL, GoogleAuthURL)
	tokenURL := orDefault(cfg.TokenURL, GoogleTokenURL)

	providerConfig := &oidc.ProviderConfig{
		IssuerURL:   GoogleIssuer,
		AuthURL:     authURL,
		TokenURL:    tokenURL,
		UserInfoURL: orDefault(cfg.UserInfoURL, GoogleUserInfoURL),
		JWKSURL:     GoogleJWKSURL,
		Algorithms:  []string{oidc.RS256},
	}

	return &GoogleProvider{
		provider: providerConfig.NewProvider(ctx),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// Name возвращает имя провайдера для привязанных аккаунтов
func (p *GoogleProvider) Name() string {
	return "google"
}

// AuthCodeURL строит URL согласия с S256 PKCE challenge
func (p *GoogleProvider) AuthCodeURL(state, challenge string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange обменивает authorization code на токены
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := p.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// FetchUserInfo читает профиль по токену
func (p *GoogleProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse user info claims: %w", err)
	}

	if info.Subject == "" || info.Email == "" {
		return nil, ErrIncompleteProfile
	}

	return &UserInfo{
		Subject:       info.Subject,
		Email:         strings.ToLower(strings.TrimSpace(info.Email)),
		Name:          claims.Name,
		AvatarURL:     claims.Picture,
		EmailVerified: info.EmailVerified,
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
