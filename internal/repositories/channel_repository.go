package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresChannelRepository answers subscription aggregation queries.
type PostgresChannelRepository struct {
	pool db.Pool
}

// NewPostgresChannelRepository constructs a channel repository backed by PostgreSQL.
func NewPostgresChannelRepository(pool db.Pool) *PostgresChannelRepository {
	return &PostgresChannelRepository{pool: pool}
}

// Profile loads the channel for username with subscriber counts. isSubscribed reflects
// whether viewerID holds a subscription edge to it; an empty viewerID yields false.
func (r *PostgresChannelRepository) Profile(ctx context.Context, username, viewerID string) (models.ChannelProfile, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		profile                 models.ChannelProfile
		subscribers, subscribed int64
		isSubscribed            bool
	)
	err = conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.full_name, u.email, u.avatar, u.cover_image,
               (SELECT COUNT(*) FROM relationship_edges e
                 WHERE e.object_id = u.id AND e.kind = 'subscription'),
               (SELECT COUNT(*) FROM relationship_edges e
                 WHERE e.subject_id = u.id AND e.kind = 'subscription'),
               EXISTS (SELECT 1 FROM relationship_edges e
                 WHERE e.subject_id = $2 AND e.object_id = u.id AND e.kind = 'subscription')
        FROM users u
        WHERE u.username = $1
    `, username, viewerID).Scan(
		&profile.ID, &profile.Username, &profile.FullName, &profile.Email, &profile.Avatar, &profile.CoverImage,
		&subscribers, &subscribed, &isSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, false, ErrNotFound
		}
		return models.ChannelProfile{}, false, fmt.Errorf("select channel profile: %w", err)
	}

	profile.SubscriberCount = int(subscribers)
	profile.SubscribedToCount = int(subscribed)
	return profile, isSubscribed, nil
}

// ListSubscribers returns the users subscribed to channelID, newest first.
func (r *PostgresChannelRepository) ListSubscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error) {
	return r.listChannels(ctx, "subscribers", `
        SELECT u.id, u.username, u.full_name, u.avatar, e.created_at
        FROM relationship_edges e
        JOIN users u ON u.id = e.subject_id
        WHERE e.object_id = $1 AND e.kind = 'subscription'
        ORDER BY e.created_at DESC, u.id ASC
    `, channelID)
}

// ListSubscriptions returns the channels userID is subscribed to, newest first.
func (r *PostgresChannelRepository) ListSubscriptions(ctx context.Context, userID string) ([]models.ChannelSummary, error) {
	return r.listChannels(ctx, "subscriptions", `
        SELECT u.id, u.username, u.full_name, u.avatar, e.created_at
        FROM relationship_edges e
        JOIN users u ON u.id = e.object_id
        WHERE e.subject_id = $1 AND e.kind = 'subscription'
        ORDER BY e.created_at DESC, u.id ASC
    `, userID)
}

func (r *PostgresChannelRepository) listChannels(ctx context.Context, what, query, id string) ([]models.ChannelSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	channels := []models.ChannelSummary{}
	for rows.Next() {
		var c models.ChannelSummary
		if err := rows.Scan(&c.Owner.ID, &c.Owner.Username, &c.Owner.FullName, &c.Owner.Avatar, &c.SubscribedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}

	return channels, nil
}
