package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/commentauth/internal/apperr"
	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/session"
)

// Authenticator резолвит токен сессии в пользователя
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error)
}

// AuthMiddleware создает middleware, требующее валидную cookie сессии.
// Пользователь и сессия кладутся в контекст через session.WithUser.
func AuthMiddleware(logger *slog.Logger, auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				writeError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			user, sess, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				kind := apperr.KindOf(err)
				if kind == apperr.KindAuthentication {
					logger.DebugContext(r.Context(), "Invalid session presented")
					writeError(w, "Invalid session", http.StatusUnauthorized)
					return
				}
				logger.ErrorContext(r.Context(), "Failed to authenticate session", slog.Any("error", err))
				writeError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			logger.DebugContext(r.Context(), "User authenticated", slog.String("user_id", user.ID))

			next.ServeHTTP(w, r.WithContext(session.WithUser(r.Context(), user, sess)))
		})
	}
}
