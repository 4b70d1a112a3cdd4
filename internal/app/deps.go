package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/comments"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/notify"
	"github.com/vidtube/backend/internal/reader"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/toggle"
)

const (
	rateLimiterIdleTTL = 10 * time.Minute
	mailSendTimeout    = 10 * time.Second
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup drains the notification queue.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	edges := repositories.NewPostgresEdgeRepository(pool)
	commentRepo := repositories.NewPostgresCommentRepository(pool)

	tokens, err := auth.NewManager(auth.TokenOptions{
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	}, users)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure tokens: %w", err)
	}
	credentials := auth.NewCredentials(users, 0)

	deps := handlers.Dependencies{
		Logger:        logger,
		Users:         users,
		Identities:    users,
		Authenticator: auth.Authenticator{Users: users, Credentials: credentials, Tokens: tokens},
		Tokens:        tokens,
		Passwords:     credentials,
		Toggles:       toggle.NewEngine(edges, edges),
		Comments:      comments.Service{Store: commentRepo},
		Reader: reader.Reader{
			Comments: commentRepo,
			Channels: repositories.NewPostgresChannelRepository(pool),
			Videos:   repositories.NewPostgresVideoRepository(pool),
		},
		AuthLimiter:  middleware.NewIPRateLimiter(cfg.AuthRateLimit, rateLimiterIdleTTL),
		CookieSecure: cfg.CookieSecure,
	}

	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Database = pinger
	}

	if cfg.ObjectStore.Enabled() {
		assets, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
		}
		deps.Assets = assets
	}

	dispatcher := notify.NewDispatcher(
		notify.LogMailer{From: cfg.Mail.From, Logger: logger},
		notify.DispatcherConfig{QueueSize: cfg.Mail.QueueSize, Workers: cfg.Mail.Workers, SendTimeout: mailSendTimeout},
		logger,
	)
	deps.Notifier = dispatcher

	return deps, dispatcher.Shutdown, nil
}
