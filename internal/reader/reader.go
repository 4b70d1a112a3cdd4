// Package reader answers the aggregation queries built on relationship edges and
// comments: threaded comment pages, channel profiles, liked videos and subscription lists.
package reader

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps Offset within int for every accepted limit.
	MaxPage = math.MaxInt / MaxLimit
)

// CommentSource lists comments with their aggregates.
type CommentSource interface {
	ListTopLevel(ctx context.Context, videoID string, limit, offset int) ([]models.CommentView, error)
	ListReplies(ctx context.Context, videoID, parentID string, limit, offset int) ([]models.CommentView, error)
}

// ChannelSource answers subscription aggregates.
type ChannelSource interface {
	Profile(ctx context.Context, username, viewerID string) (models.ChannelProfile, bool, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error)
	ListSubscriptions(ctx context.Context, userID string) ([]models.ChannelSummary, error)
}

// LikedVideoSource lists videos liked by a user.
type LikedVideoSource interface {
	ListLikedBy(ctx context.Context, userID string) ([]models.LikedVideo, error)
}

// Page selects a zero-based page of a listing.
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return p.Number * p.Limit
}

// ParsePage reads raw page and limit query values. Empty values take the defaults;
// negative or non-numeric values and pages beyond MaxPage are rejected, and limit is
// capped at MaxLimit.
func ParsePage(rawPage, rawLimit string) (Page, error) {
	page := Page{Number: 0, Limit: DefaultLimit}

	if v := strings.TrimSpace(rawPage); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, apperr.Validation("page must be a non-negative integer")
		}
		if n > MaxPage {
			return Page{}, apperr.Validation("page is out of range")
		}
		page.Number = n
	}

	if v := strings.TrimSpace(rawLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, apperr.Validation("limit must be a non-negative integer")
		}
		if n == 0 {
			n = DefaultLimit
		}
		if n > MaxLimit {
			n = MaxLimit
		}
		page.Limit = n
	}

	return page, nil
}

// CommentPage is one page of a comment listing.
type CommentPage struct {
	Comments []models.CommentView `json:"comments"`
	Page
}

// Reader composes validated aggregation queries. It never writes.
type Reader struct {
	Comments CommentSource
	Channels ChannelSource
	Videos   LikedVideoSource
}

// TopLevelComments returns comments on videoID that have no parent, each with its
// reply count and like count, oldest first.
func (r Reader) TopLevelComments(ctx context.Context, videoID string, page Page) (CommentPage, error) {
	if err := validation.Var("videoId", videoID, "required,uuid"); err != nil {
		return CommentPage{}, err
	}

	ctx, span := logging.StartSpan(ctx, "reader.top_level_comments")
	defer span.End()

	comments, err := r.Comments.ListTopLevel(ctx, videoID, page.Limit, page.Offset())
	if err != nil {
		return CommentPage{}, apperr.Internal("failed to load comments", err)
	}
	return CommentPage{Comments: comments, Page: page}, nil
}

// Replies returns replies to parentID on videoID, oldest first.
func (r Reader) Replies(ctx context.Context, videoID, parentID string, page Page) (CommentPage, error) {
	if err := validation.Var("videoId", videoID, "required,uuid"); err != nil {
		return CommentPage{}, err
	}
	if err := validation.Var("parentCommentId", parentID, "required,uuid"); err != nil {
		return CommentPage{}, err
	}

	ctx, span := logging.StartSpan(ctx, "reader.replies")
	defer span.End()

	replies, err := r.Comments.ListReplies(ctx, videoID, parentID, page.Limit, page.Offset())
	if err != nil {
		return CommentPage{}, apperr.Internal("failed to load replies", err)
	}
	return CommentPage{Comments: replies, Page: page}, nil
}

// ChannelProfile loads a channel by username. isSubscribed is only reported when
// requesterID is non-empty.
func (r Reader) ChannelProfile(ctx context.Context, username, requesterID string) (models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, apperr.Validation("username is required")
	}

	ctx, span := logging.StartSpan(ctx, "reader.channel_profile")
	defer span.End()

	profile, subscribed, err := r.Channels.Profile(ctx, username, requesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Internal("failed to load channel", err)
	}

	if requesterID != "" {
		profile.IsSubscribed = &subscribed
	}
	return profile, nil
}

// LikedVideos lists the videos userID has liked.
func (r Reader) LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	videos, err := r.Videos.ListLikedBy(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load liked videos", err)
	}
	return videos, nil
}

// Subscribers lists users subscribed to channelID.
func (r Reader) Subscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error) {
	subs, err := r.Channels.ListSubscribers(ctx, channelID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscribers", err)
	}
	return subs, nil
}

// SubscribedChannels lists channels userID subscribes to.
func (r Reader) SubscribedChannels(ctx context.Context, userID string) ([]models.ChannelSummary, error) {
	channels, err := r.Channels.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscribed channels", err)
	}
	return channels, nil
}
