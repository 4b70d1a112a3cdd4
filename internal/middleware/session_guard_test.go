package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

func newGuardFixture(t *testing.T) (*auth.Manager, *auth.InMemoryIdentityStore, models.User) {
	t.Helper()

	store := auth.NewInMemoryIdentityStore()
	user := models.User{ID: "6f1c1f0e-3d4b-4a55-9b1a-1d2f3e4a5b6c", Username: "ana", Email: "ana@example.com"}
	store.Put(user)

	manager, err := auth.NewManager(auth.TokenOptions{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}, store)
	require.NoError(t, err)

	return manager, store, user
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(user.ID))
	})
}

func TestSessionGuardAcceptsCookieAndBearer(t *testing.T) {
	manager, store, user := newGuardFixture(t)
	tokens, err := manager.Issue(context.Background(), user)
	require.NoError(t, err)

	guarded := SessionGuard(manager, store)(identityEcho())

	cookieReq := httptest.NewRequest(http.MethodGet, "/user/current-user", nil)
	cookieReq.AddCookie(&http.Cookie{Name: AccessCookie, Value: tokens.AccessToken})
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, cookieReq)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, rec.Body.String())

	bearerReq := httptest.NewRequest(http.MethodGet, "/user/current-user", nil)
	bearerReq.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, bearerReq)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, rec.Body.String())
}

func TestSessionGuardRejects(t *testing.T) {
	manager, store, user := newGuardFixture(t)
	tokens, err := manager.Issue(context.Background(), user)
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		before  func()
	}{
		{name: "missing token", prepare: func(*http.Request) {}},
		{name: "garbage token", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
		{name: "refresh token presented as access", prepare: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
		}},
		{name: "identity removed", prepare: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		}, before: func() { store.Remove(user.ID) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.before != nil {
				tt.before()
			}
			called := false
			guarded := SessionGuard(manager, store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			req := httptest.NewRequest(http.MethodGet, "/like/videos", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

type failingLookup struct{}

func (failingLookup) FindByID(context.Context, string) (models.User, error) {
	return models.User{}, errors.New("connection reset")
}

func TestSessionGuardStoreFailureIsInternal(t *testing.T) {
	manager, _, user := newGuardFixture(t)
	tokens, err := manager.Issue(context.Background(), user)
	require.NoError(t, err)

	guarded := SessionGuard(manager, failingLookup{})(identityEcho())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestOptionalSession(t *testing.T) {
	manager, store, user := newGuardFixture(t)
	tokens, err := manager.Issue(context.Background(), user)
	require.NoError(t, err)

	handler := OptionalSession(manager, store)(identityEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/channel/ana", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/user/channel/ana", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/user/channel/ana", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tokens.AccessToken})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, rec.Body.String())
}
