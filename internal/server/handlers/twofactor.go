package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/pkg/api"
)

// TwoFactorHandler обрабатывает включение, выключение и проверку 2FA.
// Все методы требуют AuthMiddleware.
type TwoFactorHandler struct {
	responder
	engine  *twofactor.Engine
	auth    *auth.Service
	metrics *metrics.Metrics
}

// NewTwoFactorHandler создает новый handler для 2FA
func NewTwoFactorHandler(logger *slog.Logger, engine *twofactor.Engine, svc *auth.Service, m *metrics.Metrics) *TwoFactorHandler {
	return &TwoFactorHandler{
		responder: responder{logger: logger},
		engine:    engine,
		auth:      svc,
		metrics:   m,
	}
}

// Begin обрабатывает GET /auth/2fa/enable
// Выдает новый секрет, в БД ничего не пишется
func (h *TwoFactorHandler) Begin(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	setup, err := h.engine.BeginEnable(user)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, setup, http.StatusOK)
}

// Enable обрабатывает POST /auth/2fa/enable
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req api.TwoFactorEnableRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.engine.ConfirmEnable(r.Context(), user.ID, req.Secret, req.Code)
	h.metrics.AuthEvent("2fa_enable", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Two-factor authentication enabled successfully"}, http.StatusOK)
}

// Disable обрабатывает POST /auth/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req api.TwoFactorCodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.engine.Disable(r.Context(), user.ID, req.Code)
	h.metrics.AuthEvent("2fa_disable", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Two-factor authentication disabled successfully"}, http.StatusOK)
}

// Verify обрабатывает POST /auth/2fa/verify
// type: totp (по умолчанию) или email
func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req api.TwoFactorCodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.engine.Verify(r.Context(), user, req.Code, twofactor.Method(req.Type))
	h.metrics.AuthEvent("2fa_verify", err)
	if err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Verification successful"}, http.StatusOK)
}

// SendEmail обрабатывает POST /auth/2fa/send-email
func (h *TwoFactorHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.auth.SendTwoFactorEmail(r.Context(), user); err != nil {
		h.sendAppError(w, r, err)
		return
	}

	h.sendJSON(w, api.MessageResponse{Message: "Verification code sent to your email"}, http.StatusOK)
}
