package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// IdentityStore persists the refresh-token digest held by each identity.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SaveRefreshToken(ctx context.Context, id, digest string) error
	SwapRefreshToken(ctx context.Context, id, previous, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// Manager mints, rotates and revokes signed session token pairs.
// Each identity holds at most one live refresh token; issuing a new pair replaces it.
type Manager struct {
	signer signer
	store  IdentityStore
	now    func() time.Time
}

// NewManager constructs a Manager signing with the provided options.
func NewManager(opts TokenOptions, store IdentityStore) (*Manager, error) {
	if store == nil {
		return nil, errors.New("auth: identity store must not be nil")
	}
	s, err := newSigner(opts)
	if err != nil {
		return nil, err
	}
	return &Manager{signer: s, store: store, now: time.Now}, nil
}

// WithClock overrides the time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue mints a new token pair for user and persists the refresh token, replacing any
// previously stored one.
func (m *Manager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, apperr.Internal("failed to create session", errors.New("user id must be provided"))
	}

	tokens, err := m.signer.issuePair(user, m.now())
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("failed to create session", err)
	}

	if err := m.store.SaveRefreshToken(ctx, user.ID, digest(tokens.RefreshToken)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.Auth("unknown identity")
		}
		return models.SessionTokens{}, apperr.Internal("failed to create session", fmt.Errorf("persist refresh token: %w", err))
	}

	return tokens, nil
}

// Rotate exchanges a presented refresh token for a new pair. The presented token must
// verify and equal the stored one; the swap is a conditional write so that of two
// concurrent rotations with the same token exactly one succeeds.
func (m *Manager) Rotate(ctx context.Context, presented string) (models.SessionTokens, models.User, error) {
	claims, err := m.signer.parseRefresh(presented, m.now)
	if err != nil {
		return models.SessionTokens{}, models.User{}, apperr.Auth("refresh token is expired or invalid")
	}

	user, err := m.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, models.User{}, apperr.Auth("unknown identity")
		}
		return models.SessionTokens{}, models.User{}, apperr.Internal("failed to refresh session", err)
	}

	presentedDigest := digest(presented)
	if user.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(presentedDigest), []byte(user.RefreshTokenHash)) != 1 {
		return models.SessionTokens{}, models.User{}, apperr.Auth("token reuse or stale session")
	}

	tokens, err := m.signer.issuePair(user, m.now())
	if err != nil {
		return models.SessionTokens{}, models.User{}, apperr.Internal("failed to refresh session", err)
	}

	if err := m.store.SwapRefreshToken(ctx, user.ID, presentedDigest, digest(tokens.RefreshToken)); err != nil {
		if errors.Is(err, repositories.ErrStale) || errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, models.User{}, apperr.Auth("token reuse or stale session")
		}
		return models.SessionTokens{}, models.User{}, apperr.Internal("failed to refresh session", fmt.Errorf("swap refresh token: %w", err))
	}

	return tokens, user, nil
}

// Revoke clears the stored refresh token for userID.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return apperr.Internal("failed to end session", fmt.Errorf("clear refresh token: %w", err))
	}
	return nil
}

// ParseAccess verifies an access token and returns its claims.
func (m *Manager) ParseAccess(token string) (*AccessClaims, error) {
	claims, err := m.signer.parseAccess(token, m.now)
	if err != nil {
		return nil, apperr.Auth("access token is expired or invalid")
	}
	return claims, nil
}
