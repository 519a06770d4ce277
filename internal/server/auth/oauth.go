package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
)

// OAuthStart - первый шаг входа через провайдера
type OAuthStart struct {
	AuthURL string
	State   oauth.State
}

// OAuthCallback содержит параметры, с которыми провайдер вернул пользователя
type OAuthCallback struct {
	// Expected - state из cookie, nil если cookie нет или она невалидна
	Expected *oauth.State
	Provider string
	Code     string
	State    string
}

// OAuthResult - результат успешного входа через провайдера
type OAuthResult struct {
	Result
	ReturnTo string
}

// StartOAuth строит URL согласия и state, который нужно сохранить до callback
func (s *Service) StartOAuth(ctx context.Context, providerName, returnTo string) (*OAuthStart, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}

	state, err := crypto.OAuthState()
	if err != nil {
		return nil, apperr.Dependency("Failed to generate state", err)
	}
	verifier, err := crypto.PKCEVerifier()
	if err != nil {
		return nil, apperr.Dependency("Failed to generate verifier", err)
	}

	st := oauth.State{
		State:    state,
		Verifier: verifier,
		Provider: p.Name(),
		ReturnTo: oauth.SafeReturnTo(returnTo),
	}

	return &OAuthStart{
		AuthURL: p.AuthCodeURL(state, crypto.PKCEChallenge(verifier)),
		State:   st,
	}, nil
}

// CompleteOAuth сверяет state, обменивает code на токен и авторизует пользователя
func (s *Service) CompleteOAuth(ctx context.Context, cb OAuthCallback, meta session.Meta) (*OAuthResult, error) {
	if cb.Code == "" || cb.State == "" {
		return nil, apperr.Validation("Authorization code and state are required")
	}
	if cb.Expected == nil {
		return nil, apperr.Validation("Invalid state")
	}
	if subtle.ConstantTimeCompare([]byte(cb.Expected.State), []byte(cb.State)) != 1 ||
		cb.Expected.Provider != cb.Provider {
		return nil, apperr.Validation("Invalid state or provider")
	}

	p, err := s.provider(cb.Provider)
	if err != nil {
		return nil, err
	}

	token, err := p.Exchange(ctx, cb.Code, cb.Expected.Verifier)
	if err != nil {
		return nil, apperr.Dependency("Failed to exchange authorization code", err)
	}

	info, err := p.FetchUserInfo(ctx, token)
	if err != nil {
		if errors.Is(err, oauth.ErrIncompleteProfile) {
			return nil, apperr.Validation("Provider did not return an email address")
		}
		return nil, apperr.Dependency("Failed to fetch user info", err)
	}

	user, err := s.resolver.Resolve(ctx, p.Name(), info, token)
	if err != nil {
		if errors.Is(err, oauth.ErrUnverifiedEmail) {
			return nil, apperr.Conflict("email", "Email already registered")
		}
		return nil, apperr.Dependency("Failed to resolve account", err)
	}

	s.logger.InfoContext(ctx, "User signed in with oauth",
		slog.String("provider", p.Name()),
		slog.String("user_id", user.ID))

	res, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	return &OAuthResult{Result: *res, ReturnTo: oauth.SafeReturnTo(cb.Expected.ReturnTo)}, nil
}
