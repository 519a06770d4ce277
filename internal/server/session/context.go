package session

import (
	"context"

	"github.com/iudanet/commentauth/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionKey
)

// WithUser возвращает копию ctx с пользователем и сессией
func WithUser(ctx context.Context, user *models.User, sess *models.Session) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, sessionKey, sess)
}

// UserFromContext возвращает авторизованного пользователя, если он есть
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// FromContext возвращает текущую сессию, если она есть
func FromContext(ctx context.Context) (*models.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*models.Session)
	return sess, ok && sess != nil
}
