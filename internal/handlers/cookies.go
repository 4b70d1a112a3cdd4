package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/models"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookiePolicy controls the attributes of session cookies.
type CookiePolicy struct {
	Secure bool
	Now    func() time.Time
}

func (p CookiePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p CookiePolicy) setSession(w http.ResponseWriter, tokens models.SessionTokens) {
	now := p.now()
	http.SetCookie(w, p.cookie(accessCookie, tokens.AccessToken, tokens.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, p.cookie(refreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt.Sub(now)))
}

func (p CookiePolicy) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		cookie := p.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (p CookiePolicy) cookie(name, value string, ttl time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Round(time.Second) / time.Second)
	}
	return cookie
}
