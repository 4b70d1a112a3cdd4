package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	ParseAccess(token string) (*auth.AccessClaims, error)
}

// IdentityLookup loads the identity named by a token.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionGuard rejects requests without a valid access token with 401 and attaches the
// caller's identity to the request context otherwise. It never looks at refresh tokens.
func SessionGuard(tokens TokenVerifier, users IdentityLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveIdentity(r, tokens, users)
			if err != nil {
				logger := logging.FromContext(r.Context())
				if apperr.KindOf(err) == apperr.KindInternal {
					logger.Error("session lookup failed", "error", err)
				} else {
					logger.Warn("unauthenticated request", "reason", apperr.PublicMessage(err))
				}
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
		})
	}
}

// OptionalSession attaches the caller's identity when a valid access token is present
// and otherwise lets the request through anonymously.
func OptionalSession(tokens TokenVerifier, users IdentityLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveIdentity(r, tokens, users)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					logging.FromContext(r.Context()).Error("optional session lookup failed", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
		})
	}
}

func resolveIdentity(r *http.Request, tokens TokenVerifier, users IdentityLookup) (models.User, error) {
	token := accessToken(r)
	if token == "" {
		return models.User{}, apperr.Auth("unauthorized request")
	}

	claims, err := tokens.ParseAccess(token)
	if err != nil {
		return models.User{}, apperr.Auth("access token is expired or invalid")
	}

	user, err := users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, apperr.Auth("access token is expired or invalid")
		}
		return models.User{}, apperr.Internal("failed to load session", err)
	}
	return user, nil
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func withIdentity(ctx context.Context, user models.User) context.Context {
	ctx = auth.WithIdentity(ctx, user)
	return logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("user_id", user.ID)))
}

func writeError(w http.ResponseWriter, err error) {
	writeStatus(w, apperr.HTTPStatus(err), apperr.PublicMessage(err))
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
