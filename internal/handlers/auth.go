package handlers

import (
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// AuthHandler implements the session endpoints: login, logout and token refresh.
type AuthHandler struct {
	Authenticator Authenticator
	Tokens        TokenService
	Cookies       CookiePolicy
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

func (req loginRequest) login() string {
	for _, candidate := range []string{req.UsernameOrEmail, req.Username, req.Email} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User   userView             `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

// Login handles POST /user/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, tokens, err := h.Authenticator.Login(ctx, req.login(), req.Password)
	metrics.RecordAuthEvent("login", err)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("user logged in", "user_id", user.ID)
	h.Cookies.setSession(w, tokens)
	respondJSON(ctx, w, http.StatusOK, sessionResponse{User: newUserView(user), Tokens: tokens})
}

// Logout handles POST /user/logout. The caller's refresh token stops working immediately;
// access tokens already issued remain valid until they expire.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	err = h.Tokens.Revoke(ctx, user.ID)
	metrics.RecordAuthEvent("logout", err)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Cookies.clearSession(w)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Refresh handles POST /user/refresh-access-token. The refresh token is read from the
// refreshToken cookie, falling back to the JSON body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie(refreshCookie); err == nil {
		presented = strings.TrimSpace(cookie.Value)
	}
	if presented == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			respondError(ctx, w, err)
			return
		}
		presented = strings.TrimSpace(req.RefreshToken)
	}
	if presented == "" {
		metrics.RecordAuthEvent("refresh", apperr.ErrAuth)
		respondError(ctx, w, apperr.Auth("refresh token is required"))
		return
	}

	tokens, user, err := h.Tokens.Rotate(ctx, presented)
	metrics.RecordAuthEvent("refresh", err)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			h.Cookies.clearSession(w)
		}
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	respondJSON(ctx, w, http.StatusOK, sessionResponse{User: newUserView(user), Tokens: tokens})
}
