package repositories

import (
	"context"
	"fmt"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresVideoRepository reads videos and the likes pointing at them.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a video record. Uploading and transcoding happen elsewhere; this is
// used by seeds and tests.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, thumbnail, video_url, duration_seconds, is_published, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.Thumbnail, video.VideoURL, video.DurationSeconds, video.IsPublished, video.CreatedAt)
	if err != nil {
		return translateWriteError("insert video", err)
	}

	return nil
}

// ListLikedBy returns the videos userID has liked, most recent like first.
func (r *PostgresVideoRepository) ListLikedBy(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.description, v.thumbnail, v.video_url, v.duration_seconds, e.created_at,
               o.id, o.username, o.full_name, o.avatar
        FROM relationship_edges e
        JOIN videos v ON v.id = e.object_id
        JOIN users o ON o.id = v.owner_id
        WHERE e.subject_id = $1 AND e.kind = 'video-like'
        ORDER BY e.created_at DESC, v.id ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	videos := []models.LikedVideo{}
	for rows.Next() {
		var v models.LikedVideo
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.Thumbnail, &v.VideoURL, &v.DurationSeconds, &v.LikedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName, &v.Owner.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}

	return videos, nil
}
