package auth

import (
	"context"

	"github.com/vidtube/backend/internal/models"
)

type identityKey struct{}

// WithIdentity attaches the authenticated user to ctx.
func WithIdentity(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// IdentityFromContext returns the authenticated user, if any.
func IdentityFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	user, ok := ctx.Value(identityKey{}).(models.User)
	return user, ok
}
