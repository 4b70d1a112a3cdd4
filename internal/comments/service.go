// Package comments writes comments and one-level replies on videos.
package comments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// MaxBodyLength bounds a comment body in characters.
const MaxBodyLength = 2000

// Store persists comments. Create must reject a parent that is not a top-level comment
// on the same video with repositories.ErrInvalidReference in the same statement as the insert.
type Store interface {
	Create(ctx context.Context, comment models.Comment) error
	UpdateBody(ctx context.Context, commentID, ownerID, body string, updatedAt time.Time) (models.Comment, error)
	Delete(ctx context.Context, commentID, ownerID string) error
}

// Service validates and applies comment writes.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Add posts a comment on videoID, or a reply when parentID is non-empty.
func (s Service) Add(ctx context.Context, ownerID, videoID, body, parentID string) (models.Comment, error) {
	body = strings.TrimSpace(body)
	if err := validateBody(body); err != nil {
		return models.Comment{}, err
	}
	if err := validation.Var("videoId", videoID, "required,uuid"); err != nil {
		return models.Comment{}, err
	}
	if parentID != "" {
		if err := validation.Var("parentCommentId", parentID, "uuid"); err != nil {
			return models.Comment{}, err
		}
	}

	now := s.now()
	comment := models.Comment{
		ID:              uuid.NewString(),
		VideoID:         videoID,
		OwnerID:         ownerID,
		Body:            body,
		ParentCommentID: parentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.Store.Create(ctx, comment); err != nil {
		switch {
		case errors.Is(err, repositories.ErrInvalidReference):
			return models.Comment{}, apperr.Validation("parent comment must be a top-level comment on this video")
		case errors.Is(err, repositories.ErrNotFound):
			return models.Comment{}, apperr.NotFound("video not found")
		default:
			return models.Comment{}, apperr.Internal("failed to add comment", err)
		}
	}

	return comment, nil
}

// Edit replaces the body of a comment owned by ownerID.
func (s Service) Edit(ctx context.Context, ownerID, commentID, body string) (models.Comment, error) {
	body = strings.TrimSpace(body)
	if err := validateBody(body); err != nil {
		return models.Comment{}, err
	}
	if err := validation.Var("commentId", commentID, "required,uuid"); err != nil {
		return models.Comment{}, err
	}

	comment, err := s.Store.UpdateBody(ctx, commentID, ownerID, body, s.now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Comment{}, apperr.NotFound("comment not found")
		}
		return models.Comment{}, apperr.Internal("failed to update comment", err)
	}
	return comment, nil
}

// Remove deletes a comment owned by ownerID. Its replies are kept.
func (s Service) Remove(ctx context.Context, ownerID, commentID string) error {
	if err := validation.Var("commentId", commentID, "required,uuid"); err != nil {
		return err
	}

	if err := s.Store.Delete(ctx, commentID, ownerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("comment not found")
		}
		return apperr.Internal("failed to delete comment", err)
	}
	return nil
}

func validateBody(body string) error {
	if body == "" {
		return apperr.Validation("comment is required")
	}
	if len([]rune(body)) > MaxBodyLength {
		return apperr.Validation("comment is too long")
	}
	return nil
}
