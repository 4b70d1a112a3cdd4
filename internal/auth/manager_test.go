package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
)

var testTokenOptions = TokenOptions{
	AccessSecret:  "access-secret",
	RefreshSecret: "refresh-secret",
	AccessTTL:     15 * time.Minute,
	RefreshTTL:    240 * time.Hour,
}

func newTestManager(t *testing.T) (*Manager, *InMemoryIdentityStore, models.User) {
	t.Helper()
	store := NewInMemoryIdentityStore()
	user := models.User{ID: "user-1", Username: "ana", Email: "ana@example.com"}
	store.Put(user)

	manager, err := NewManager(testTokenOptions, store)
	require.NoError(t, err)
	return manager, store, user
}

func TestNewManagerRejectsSharedSecret(t *testing.T) {
	opts := testTokenOptions
	opts.RefreshSecret = opts.AccessSecret

	_, err := NewManager(opts, NewInMemoryIdentityStore())
	require.Error(t, err)
}

func TestManagerIssuePersistsRefreshDigest(t *testing.T) {
	manager, store, user := newTestManager(t)

	tokens, err := manager.Issue(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.True(t, tokens.AccessExpiresAt.Before(tokens.RefreshExpiresAt))

	stored, err := store.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, digest(tokens.RefreshToken), stored.RefreshTokenHash)
	assert.NotEqual(t, tokens.RefreshToken, stored.RefreshTokenHash)

	claims, err := manager.ParseAccess(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "ana", claims.Username)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestManagerRotateReplacesStoredToken(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	second, rotatedFor, err := manager.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, rotatedFor.ID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, _, err = manager.Rotate(ctx, first.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
	assert.Equal(t, "token reuse or stale session", apperr.PublicMessage(err))

	_, _, err = manager.Rotate(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestManagerLoginOverwritesPreviousSession(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	older, err := manager.Issue(ctx, user)
	require.NoError(t, err)
	_, err = manager.Issue(ctx, user)
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, older.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestManagerRotateFailures(t *testing.T) {
	manager, store, user := newTestManager(t)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	cases := []struct {
		name    string
		token   string
		setup   func()
		message string
	}{
		{name: "garbage", token: "not-a-token", message: "refresh token is expired or invalid"},
		{name: "access token presented", token: tokens.AccessToken, message: "refresh token is expired or invalid"},
		{name: "unknown identity", token: tokens.RefreshToken, setup: func() { store.Remove(user.ID) }, message: "unknown identity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			_, _, err := manager.Rotate(ctx, tc.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrAuth))
			assert.Equal(t, tc.message, apperr.PublicMessage(err))
		})
	}
}

func TestManagerRotateExpired(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	issuedAt := time.Now()
	manager.WithClock(func() time.Time { return issuedAt })
	tokens, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	manager.WithClock(func() time.Time { return issuedAt.Add(testTokenOptions.RefreshTTL + time.Minute) })
	_, _, err = manager.Rotate(ctx, tokens.RefreshToken)
	assert.Equal(t, "refresh token is expired or invalid", apperr.PublicMessage(err))

	_, err = manager.ParseAccess(tokens.AccessToken)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestManagerRevoke(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, user)
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(ctx, user.ID))

	_, _, err = manager.Rotate(ctx, tokens.RefreshToken)
	assert.Equal(t, "token reuse or stale session", apperr.PublicMessage(err))

	require.NoError(t, manager.Revoke(ctx, "missing-user"))
}

func TestManagerConcurrentRotationHasOneWinner(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, user)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := manager.Rotate(ctx, tokens.RefreshToken); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrAuth) {
				t.Errorf("unexpected error kind: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestParseAccessRejectsForeignSignature(t *testing.T) {
	manager, _, user := newTestManager(t)

	other, err := NewManager(TokenOptions{
		AccessSecret:  "other-access",
		RefreshSecret: "other-refresh",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, NewInMemoryIdentityStore())
	require.NoError(t, err)

	pair, err := other.signer.issuePair(user, time.Now())
	require.NoError(t, err)

	_, err = manager.ParseAccess(pair.AccessToken)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}
