package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/ratelimit"
	"github.com/iudanet/commentauth/internal/server/metrics"
)

// rateLimitMessages - тексты ответа 429 по имени политики
var rateLimitMessages = map[string]string{
	ratelimit.LoginPolicy.Name:        "Too many login attempts. Please try again later.",
	ratelimit.RegisterPolicy.Name:     "Too many registration attempts. Please try again later.",
	ratelimit.CommentPolicy.Name:      "Too many comment attempts. Please try again later.",
	ratelimit.VerificationPolicy.Name: "Too many verification requests. Please try again later.",
}

// RateLimitMiddleware создает middleware, ограничивающее частоту запросов
// по IP клиента. Ошибка хранилища счетчиков не блокирует запрос.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return rateLimit(limiter, logger, m, time.Now)
}

func rateLimit(limiter ratelimit.Limiter, logger *slog.Logger, m *metrics.Metrics, now func() time.Time) func(http.Handler) http.Handler {
	policy := limiter.Policy()
	message, ok := rateLimitMessages[policy.Name]
	if !ok {
		message = "Too many requests. Please try again later."
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := fmt.Sprintf("%s:%s", policy.Name, ClientIP(r))

			decision, err := limiter.Check(ctx, key)
			if err != nil {
				logger.ErrorContext(ctx, "Rate limit check failed",
					slog.String("policy", policy.Name),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retry := apperr.RetryAfterSeconds(decision.RetryAfter(now()))

				logger.WarnContext(ctx, "Rate limit exceeded",
					slog.String("policy", policy.Name),
					slog.String("ip", ClientIP(r)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))

				m.RateLimited(policy.Name)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, message, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
