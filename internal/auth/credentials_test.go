package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
)

func newTestCredentials(t *testing.T, password string) (*Credentials, *InMemoryIdentityStore, models.User) {
	t.Helper()
	store := NewInMemoryIdentityStore()
	creds := NewCredentials(store, bcrypt.MinCost)

	hashed, err := creds.Hash(password)
	require.NoError(t, err)

	user := models.User{ID: "user-1", Username: "ana", Email: "ana@example.com", Password: hashed}
	store.Put(user)
	return creds, store, user
}

func TestCredentialsVerify(t *testing.T) {
	creds, _, user := newTestCredentials(t, "Secr3t!pass")

	assert.True(t, creds.Verify(user, "Secr3t!pass"))
	assert.False(t, creds.Verify(user, "wrong"))
	assert.False(t, creds.Verify(models.User{Password: "not-a-bcrypt-hash"}, "anything"))
}

func TestCredentialsChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmation mismatch", func(t *testing.T) {
		creds, _, user := newTestCredentials(t, "old-password")
		err := creds.ChangePassword(ctx, user, "old-password", "new-password", "other-password")
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("wrong old password", func(t *testing.T) {
		creds, _, user := newTestCredentials(t, "old-password")
		err := creds.ChangePassword(ctx, user, "nope", "new-password", "new-password")
		assert.True(t, errors.Is(err, apperr.ErrAuth))
	})

	t.Run("success", func(t *testing.T) {
		creds, store, user := newTestCredentials(t, "old-password")
		require.NoError(t, creds.ChangePassword(ctx, user, "old-password", "new-password", "new-password"))

		updated, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, creds.Verify(updated, "new-password"))
		assert.False(t, creds.Verify(updated, "old-password"))
	})
}

func TestCredentialsSetPasswordUnknownUser(t *testing.T) {
	creds := NewCredentials(NewInMemoryIdentityStore(), bcrypt.MinCost)
	err := creds.SetPassword(context.Background(), "missing", "whatever1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCredentialsVerifyUnknownFallsBackWhenHashingFails(t *testing.T) {
	creds := NewCredentials(NewInMemoryIdentityStore(), bcrypt.MinCost)
	creds.generate = func([]byte, int) ([]byte, error) {
		return nil, errors.New("entropy source unavailable")
	}

	creds.VerifyUnknown("whatever")

	assert.Equal(t, fallbackDummyHash, string(creds.dummy))
	cost, err := bcrypt.Cost(creds.dummy)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestCredentialsVerifyUnknownUsesConfiguredCost(t *testing.T) {
	creds := NewCredentials(NewInMemoryIdentityStore(), bcrypt.MinCost)

	creds.VerifyUnknown("whatever")

	cost, err := bcrypt.Cost(creds.dummy)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
