package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments and replies.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a comment. When ParentCommentID is set the insert only happens if the
// parent is a top-level comment on the same video; otherwise ErrInvalidReference is returned.
// A missing video yields ErrNotFound.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	parent := sql.NullString{String: comment.ParentCommentID, Valid: comment.ParentCommentID != ""}

	tag, err := conn.Exec(ctx, `
        INSERT INTO comments (id, video_id, owner_id, body, parent_comment_id, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5::TEXT, $6, $6
        WHERE $5::TEXT IS NULL OR EXISTS (
            SELECT 1 FROM comments p
            WHERE p.id = $5::TEXT AND p.video_id = $2 AND p.parent_comment_id IS NULL
        )
    `, comment.ID, comment.VideoID, comment.OwnerID, comment.Body, parent, comment.CreatedAt)
	if err != nil {
		return translateWriteError("insert comment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidReference
	}

	return nil
}

// UpdateBody rewrites a comment owned by ownerID. Comments owned by someone else are
// indistinguishable from missing ones.
func (r *PostgresCommentRepository) UpdateBody(ctx context.Context, commentID, ownerID, body string, updatedAt time.Time) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		comment models.Comment
		parent  sql.NullString
	)
	err = conn.QueryRow(ctx, `
        UPDATE comments
        SET body = $3, updated_at = $4
        WHERE id = $1 AND owner_id = $2
        RETURNING id, video_id, owner_id, body, parent_comment_id, created_at, updated_at
    `, commentID, ownerID, body, updatedAt).Scan(
		&comment.ID, &comment.VideoID, &comment.OwnerID, &comment.Body, &parent, &comment.CreatedAt, &comment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	comment.ParentCommentID = parent.String

	return comment, nil
}

// Delete removes a comment owned by ownerID. Replies to it are left in place.
func (r *PostgresCommentRepository) Delete(ctx context.Context, commentID, ownerID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM comments
        WHERE id = $1 AND owner_id = $2
    `, commentID, ownerID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListTopLevel returns a page of comments without a parent, oldest first, with reply and
// like counts computed in the same query.
func (r *PostgresCommentRepository) ListTopLevel(ctx context.Context, videoID string, limit, offset int) ([]models.CommentView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.video_id, c.body, c.created_at, c.updated_at,
               u.id, u.username, u.full_name, u.avatar,
               (SELECT COUNT(*) FROM comments r
                 WHERE r.parent_comment_id = c.id AND r.video_id = c.video_id) AS replies_count,
               (SELECT COUNT(*) FROM relationship_edges e
                 WHERE e.object_id = c.id AND e.kind = 'comment-like') AS like_count
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1 AND c.parent_comment_id IS NULL
        ORDER BY c.created_at ASC, c.id ASC
        LIMIT $2 OFFSET $3
    `, videoID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query top-level comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.CommentView, 0, limit)
	for rows.Next() {
		var (
			view           models.CommentView
			replies, likes int64
		)
		if err := rows.Scan(
			&view.ID, &view.VideoID, &view.Content, &view.CreatedAt, &view.UpdatedAt,
			&view.Owner.ID, &view.Owner.Username, &view.Owner.FullName, &view.Owner.Avatar,
			&replies, &likes,
		); err != nil {
			return nil, fmt.Errorf("scan top-level comment: %w", err)
		}
		repliesCount, likeCount := int(replies), int(likes)
		view.RepliesCount = &repliesCount
		view.LikeCount = &likeCount
		comments = append(comments, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top-level comments: %w", err)
	}

	return comments, nil
}

// ListReplies returns a page of replies to parentID on videoID, oldest first.
func (r *PostgresCommentRepository) ListReplies(ctx context.Context, videoID, parentID string, limit, offset int) ([]models.CommentView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.video_id, c.body, c.parent_comment_id, c.created_at, c.updated_at,
               u.id, u.username, u.full_name, u.avatar
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1 AND c.parent_comment_id = $2
        ORDER BY c.created_at ASC, c.id ASC
        LIMIT $3 OFFSET $4
    `, videoID, parentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	replies := make([]models.CommentView, 0, limit)
	for rows.Next() {
		var view models.CommentView
		if err := rows.Scan(
			&view.ID, &view.VideoID, &view.Content, &view.ParentCommentID, &view.CreatedAt, &view.UpdatedAt,
			&view.Owner.ID, &view.Owner.Username, &view.Owner.FullName, &view.Owner.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		replies = append(replies, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}

	return replies, nil
}
