package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// PasswordStore persists password hashes.
type PasswordStore interface {
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Credentials verifies and updates password material.
type Credentials struct {
	store PasswordStore
	cost  int

	generate  func(password []byte, cost int) ([]byte, error)
	dummyOnce sync.Once
	dummy     []byte
}

// fallbackDummyHash is a well-formed cost-10 bcrypt hash compared against when the
// placeholder hash cannot be generated.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

// NewCredentials returns a credential store hashing with the given bcrypt cost.
// A zero cost selects bcrypt.DefaultCost.
func NewCredentials(store PasswordStore, cost int) *Credentials {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{store: store, cost: cost, generate: bcrypt.GenerateFromPassword}
}

// Hash produces the stored form of a password.
func (c *Credentials) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether candidate matches the user's stored hash. Malformed hashes
// never match.
func (c *Credentials) Verify(user models.User, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(candidate)) == nil
}

// VerifyUnknown spends the same work as Verify for logins that matched no account.
func (c *Credentials) VerifyUnknown(candidate string) {
	c.dummyOnce.Do(func() {
		generate := c.generate
		if generate == nil {
			generate = bcrypt.GenerateFromPassword
		}
		hashed, err := generate([]byte("unknown-account-placeholder"), c.cost)
		if err != nil {
			slog.Default().Warn("placeholder password hash unavailable, using fallback", "error", err)
			hashed = []byte(fallbackDummyHash)
		}
		c.dummy = hashed
	})
	_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(candidate))
}

// SetPassword hashes and stores a new password for userID.
func (c *Credentials) SetPassword(ctx context.Context, userID, password string) error {
	hashed, err := c.Hash(password)
	if err != nil {
		return apperr.Internal("failed to secure password", err)
	}
	if err := c.store.UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Internal("failed to update password", err)
	}
	return nil
}

// ChangePassword replaces the user's password after checking the old one.
func (c *Credentials) ChangePassword(ctx context.Context, user models.User, oldPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return apperr.Validation("new password and confirmation do not match")
	}
	if !c.Verify(user, oldPassword) {
		return apperr.Auth("invalid old password")
	}
	return c.SetPassword(ctx, user.ID, newPassword)
}
