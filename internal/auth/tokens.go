package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
)

// AccessClaims is the payload of an access token. Subject holds the user id.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// refreshClaims carries only the subject and a unique token id.
type refreshClaims struct {
	jwt.RegisteredClaims
}

// TokenOptions configures signing keys and lifetimes.
type TokenOptions struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type signer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func newSigner(opts TokenOptions) (signer, error) {
	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return signer{}, errors.New("auth: token secrets must be provided")
	}
	if opts.AccessSecret == opts.RefreshSecret {
		return signer{}, errors.New("auth: access and refresh secrets must differ")
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return signer{}, errors.New("auth: token lifetimes must be positive")
	}
	return signer{
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
	}, nil
}

func (s signer) issuePair(user models.User, now time.Time) (models.SessionTokens, error) {
	access := &AccessClaims{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(s.accessSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := &refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(s.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  access.ExpiresAt.Time,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refresh.ExpiresAt.Time,
	}, nil
}

func (s signer) parseAccess(token string, now func() time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(token, claims, s.accessSecret, now); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s signer) parseRefresh(token string, now func() time.Time) (*refreshClaims, error) {
	claims := &refreshClaims{}
	if err := parse(token, claims, s.refreshSecret, now); err != nil {
		return nil, err
	}
	return claims, nil
}

func parse(token string, claims jwt.Claims, secret []byte, now func() time.Time) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return errors.New("token missing subject")
	}
	return nil
}

// digest is the form in which refresh tokens are persisted.
func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
