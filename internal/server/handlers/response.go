package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/middleware"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/pkg/api"
)

const (
	msgInternal    = "Internal server error"
	msgInvalidJSON = "Invalid JSON body"
	msgNotAuth     = "Not authenticated"

	maxBodyBytes = 64 << 10
)

// responder - общие помощники ответа для всех handler'ов
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.ErrorResponse{Error: message}, statusCode)
}

// sendAppError переводит ошибку сервиса в HTTP ответ.
// Неклассифицированные ошибки логируются и отдаются как 500 без деталей.
func (h responder) sendAppError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	if errors.Is(err, apperr.ErrTwoFactorRequired) {
		h.sendJSON(w, api.ErrorResponse{
			Error:             err.Error(),
			RequiresTwoFactor: true,
		}, http.StatusForbidden)
		return
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(ctx, "unhandled error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		h.sendError(w, msgInternal, http.StatusInternalServerError)
		return
	}

	switch appErr.Kind {
	case apperr.KindDependency, apperr.KindUnknown:
		h.logger.ErrorContext(ctx, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("message", appErr.Message),
			slog.Any("error", appErr.Err))
	case apperr.KindRateLimit:
		w.Header().Set("Retry-After", strconv.Itoa(apperr.RetryAfterSeconds(appErr.RetryAfter)))
	}

	h.sendError(w, appErr.Message, appErr.Kind.HTTPStatus())
}

// decodeJSON читает тело запроса в dst. При ошибке отвечает 400 и
// возвращает false.
func (h responder) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request body", slog.Any("error", err))
		h.sendError(w, msgInvalidJSON, http.StatusBadRequest)
		return false
	}
	return true
}

// currentUser достает пользователя, положенного AuthMiddleware.
// Если его нет, отвечает 401.
func (h responder) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		h.sendError(w, msgNotAuth, http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// requestMeta собирает информационные поля новой сессии
func requestMeta(r *http.Request) session.Meta {
	return session.Meta{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
