package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger        *slog.Logger
	Database      Pinger
	Users         UserStore
	Identities    middleware.IdentityLookup
	Authenticator Authenticator
	Tokens        SessionTokens
	Passwords     PasswordService
	Toggles       Toggler
	Comments      CommentWriter
	Reader        ReadModel
	Assets        AssetStore
	Notifier      Notifier
	AuthLimiter   middleware.RateLimiter
	CookieSecure  bool
}

// NewRouter wires every HTTP endpoint onto a chi router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cookies := CookiePolicy{Secure: deps.CookieSecure}
	health := HealthHandler{Database: deps.Database}
	sessions := AuthHandler{Authenticator: deps.Authenticator, Tokens: deps.Tokens, Cookies: cookies}
	users := UserHandler{
		Users:     deps.Users,
		Passwords: deps.Passwords,
		Reader:    deps.Reader,
		Assets:    deps.Assets,
		Notifier:  deps.Notifier,
	}
	likes := LikeHandler{Toggles: deps.Toggles, Reader: deps.Reader}
	subscriptions := SubscriptionHandler{Toggles: deps.Toggles, Reader: deps.Reader}
	comments := CommentHandler{Comments: deps.Comments, Reader: deps.Reader}

	requireSession := middleware.SessionGuard(deps.Tokens, deps.Identities)
	optionalSession := middleware.OptionalSession(deps.Tokens, deps.Identities)
	authLimit := middleware.RateLimit(deps.AuthLimiter, "auth")

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", health.Handle)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/user", func(r chi.Router) {
		r.Post("/register", users.Register)
		r.With(authLimit).Post("/login", sessions.Login)
		r.With(authLimit).Post("/refresh-access-token", sessions.Refresh)
		r.With(optionalSession).Get("/channel/{username}", users.ChannelProfile)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", sessions.Logout)
			r.Patch("/change-password", users.ChangePassword)
			r.Get("/current-user", users.CurrentUser)
			r.Patch("/update-account", users.UpdateAccount)
			r.Patch("/update-avatar", users.UpdateAvatar)
			r.Patch("/update-cover-image", users.UpdateCoverImage)
		})
	})

	r.Route("/like", func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/video/{videoId}", likes.ToggleVideo)
		r.Post("/comment/{commentId}", likes.ToggleComment)
		r.Post("/post/{postId}", likes.TogglePost)
		r.Get("/videos", likes.LikedVideos)
	})

	r.Route("/subscription", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/subscribers", subscriptions.Subscribers)
		r.Get("/channels", subscriptions.Channels)
		r.Post("/{channelId}", subscriptions.Toggle)
	})

	r.Route("/comment", func(r chi.Router) {
		r.Get("/{videoId}", comments.List)
		r.Get("/{videoId}/{parentCommentId}/replies", comments.Replies)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/{videoId}", comments.Add)
			r.Patch("/c/{commentId}", comments.Edit)
			r.Delete("/c/{commentId}", comments.Delete)
		})
	})

	return r
}
