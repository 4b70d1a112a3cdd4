package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// LoginLookup resolves a username or email to an identity.
type LoginLookup interface {
	FindByLogin(ctx context.Context, login string) (models.User, error)
}

// Authenticator verifies credentials and opens sessions.
type Authenticator struct {
	Users       LoginLookup
	Credentials *Credentials
	Tokens      *Manager
}

// Login verifies login (a username or email) and password and issues a token pair.
// Unknown accounts and wrong passwords fail identically.
func (a Authenticator) Login(ctx context.Context, login, password string) (models.User, models.SessionTokens, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" || password == "" {
		return models.User{}, models.SessionTokens{}, apperr.Validation("username or email and password are required")
	}

	user, err := a.Users.FindByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, models.SessionTokens{}, apperr.Internal("failed to sign in", err)
		}
		a.Credentials.VerifyUnknown(password)
		return models.User{}, models.SessionTokens{}, apperr.Auth("invalid credentials")
	}

	if !a.Credentials.Verify(user, password) {
		return models.User{}, models.SessionTokens{}, apperr.Auth("invalid credentials")
	}

	tokens, err := a.Tokens.Issue(ctx, user)
	if err != nil {
		return models.User{}, models.SessionTokens{}, err
	}

	return user, tokens, nil
}
