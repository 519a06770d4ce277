// Package server wires handlers, middleware and routes into an http.Handler.
package server

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/ratelimit"
	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/comments"
	"github.com/iudanet/commentauth/internal/server/handlers"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/middleware"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/twofactor"
)

// Limiters holds one limiter per endpoint class.
type Limiters struct {
	Login        ratelimit.Limiter
	Register     ratelimit.Limiter
	Comment      ratelimit.Limiter
	Verification ratelimit.Limiter
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Logger       *slog.Logger
	Auth         *auth.Service
	Sessions     *session.Manager
	TwoFactor    *twofactor.Engine
	Comments     *comments.Service
	StateCodec   *oauth.StateCodec
	Metrics      *metrics.Metrics // nil disables /metrics
	HealthChecks map[string]handlers.Pinger
	Limiters     Limiters
	Version      string
	TrustProxy   bool
}

type middlewareFunc = func(http.Handler) http.Handler

// chain applies mws so that the first one runs first.
func chain(h http.Handler, mws ...middlewareFunc) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewRouter builds the service handler with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger

	authHandler := handlers.NewAuthHandler(logger, d.Auth, d.Sessions, d.Metrics)
	twoFactorHandler := handlers.NewTwoFactorHandler(logger, d.TwoFactor, d.Auth, d.Metrics)
	oauthHandler := handlers.NewOAuthHandler(logger, d.Auth, d.Sessions, d.StateCodec, d.Metrics)
	commentHandler := handlers.NewCommentHandler(logger, d.Comments)
	healthHandler := handlers.NewHealthHandler(logger, d.Version, d.HealthChecks)

	requireAuth := middleware.AuthMiddleware(logger, d.Auth)
	limit := func(l ratelimit.Limiter) middlewareFunc {
		return middleware.RateLimitMiddleware(l, logger, d.Metrics)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Аккаунт
	mux.Handle("POST /auth/register", chain(http.HandlerFunc(authHandler.Register), limit(d.Limiters.Register)))
	mux.Handle("POST /auth/login", chain(http.HandlerFunc(authHandler.Login), limit(d.Limiters.Login)))
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /auth/me", chain(http.HandlerFunc(authHandler.Me), requireAuth))
	mux.Handle("POST /auth/verification/send",
		chain(http.HandlerFunc(authHandler.SendVerificationCode), limit(d.Limiters.Verification)))

	// 2FA
	mux.Handle("GET /auth/2fa/enable", chain(http.HandlerFunc(twoFactorHandler.Begin), requireAuth))
	mux.Handle("POST /auth/2fa/enable", chain(http.HandlerFunc(twoFactorHandler.Enable), requireAuth))
	mux.Handle("POST /auth/2fa/disable", chain(http.HandlerFunc(twoFactorHandler.Disable), requireAuth))
	mux.Handle("POST /auth/2fa/verify",
		chain(http.HandlerFunc(twoFactorHandler.Verify), limit(d.Limiters.Login), requireAuth))
	mux.Handle("POST /auth/2fa/send-email",
		chain(http.HandlerFunc(twoFactorHandler.SendEmail), limit(d.Limiters.Verification), requireAuth))

	// OAuth
	mux.HandleFunc("GET /auth/oauth/{provider}", oauthHandler.Start)
	mux.HandleFunc("GET /auth/oauth/{provider}/callback", oauthHandler.Callback)
	mux.HandleFunc("POST /auth/oauth/{provider}/callback", oauthHandler.Callback)

	// Комментарии
	mux.HandleFunc("GET /comments", commentHandler.List)
	mux.Handle("POST /comments",
		chain(http.HandlerFunc(commentHandler.Create), limit(d.Limiters.Comment), requireAuth))
	mux.HandleFunc("GET /comments/{id}", commentHandler.Get)
	mux.Handle("PUT /comments/{id}", chain(http.HandlerFunc(commentHandler.Update), requireAuth))
	mux.Handle("DELETE /comments/{id}", chain(http.HandlerFunc(commentHandler.Delete), requireAuth))

	return chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.ClientIPMiddleware(d.TrustProxy),
		middleware.LoggingWithSkip(logger, []string{"/health", "/metrics"}),
		metrics.HTTPMetricsMiddleware(d.Metrics),
	)
}
