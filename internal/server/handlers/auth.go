package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	auth     *auth.Service
	sessions *session.Manager
	metrics  *metrics.Metrics
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, svc *auth.Service, sessions *session.Manager, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		auth:      svc,
		sessions:  sessions,
		metrics:   m,
	}
}

// Register обрабатывает POST /auth/register
// Регистрация по коду из письма
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:         req.Email,
		Username:      req.Username,
		Password:      req.Password,
		Code:          req.Code,
		AcceptedTerms: req.AcceptedTerms,
	}, requestMeta(r))
	h.metrics.AuthEvent("register", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, res.Session.Token)
	h.sendJSON(w, api.UserResponse{
		Message: "Registration successful.",
		User:    api.NewPublicUser(res.User),
	}, http.StatusCreated)
}

// Login обрабатывает POST /auth/login
// Вход по email и паролю, при включенной 2FA нужен twoFactorCode
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), auth.LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
	}, requestMeta(r))
	h.metrics.AuthEvent("login", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sessions.SetCookie(w, res.Session.Token)
	h.sendJSON(w, api.UserResponse{
		Message: "Login successful",
		User:    api.NewPublicUser(res.User),
	}, http.StatusOK)
}

// Logout обрабатывает POST /auth/logout
// Идемпотентен: без cookie просто отвечает 200
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	if token == "" {
		h.sendJSON(w, api.MessageResponse{Message: "No active session"}, http.StatusOK)
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sessions.ClearCookie(w)
	h.sendJSON(w, api.MessageResponse{Message: "Logout successful"}, http.StatusOK)
}

// Me обрабатывает GET /auth/me
// Требует AuthMiddleware
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	h.sendJSON(w, api.ProfileResponse{User: api.NewProfile(user)}, http.StatusOK)
}

// SendVerificationCode обрабатывает POST /auth/verification/send
func (h *AuthHandler) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req api.VerificationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.SendVerificationCode(r.Context(), req.Email, req.Lang); err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Verification code sent"}, http.StatusOK)
}
