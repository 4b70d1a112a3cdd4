package handlers

import (
	"context"
	"io"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/notify"
	"github.com/vidtube/backend/internal/reader"
	"github.com/vidtube/backend/internal/toggle"
)

// UserStore captures the account persistence used by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateDetails(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error)
	UpdateImage(ctx context.Context, id string, field models.ImageField, location string, updatedAt time.Time) (models.User, string, error)
}

// Authenticator verifies a login and password and opens a session.
type Authenticator interface {
	Login(ctx context.Context, login, password string) (models.User, models.SessionTokens, error)
}

// TokenService issues, rotates and revokes session tokens.
type TokenService interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Rotate(ctx context.Context, presented string) (models.SessionTokens, models.User, error)
	Revoke(ctx context.Context, userID string) error
}

// PasswordService hashes and changes passwords.
type PasswordService interface {
	Hash(password string) (string, error)
	ChangePassword(ctx context.Context, user models.User, oldPassword, newPassword, confirmPassword string) error
}

// Toggler flips relationship edges.
type Toggler interface {
	Toggle(ctx context.Context, subjectID, objectID string, kind models.EdgeKind) (toggle.Result, error)
}

// CommentWriter adds, edits and removes comments.
type CommentWriter interface {
	Add(ctx context.Context, ownerID, videoID, body, parentID string) (models.Comment, error)
	Edit(ctx context.Context, ownerID, commentID, body string) (models.Comment, error)
	Remove(ctx context.Context, ownerID, commentID string) error
}

// ReadModel answers listing and aggregation queries.
type ReadModel interface {
	TopLevelComments(ctx context.Context, videoID string, page reader.Page) (reader.CommentPage, error)
	Replies(ctx context.Context, videoID, parentID string, page reader.Page) (reader.CommentPage, error)
	ChannelProfile(ctx context.Context, username, requesterID string) (models.ChannelProfile, error)
	LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
	Subscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error)
	SubscribedChannels(ctx context.Context, userID string) ([]models.ChannelSummary, error)
}

// AssetStore persists uploaded media and returns a public location for it.
type AssetStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// Notifier queues outbound messages.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message) error
}

// SessionTokens is the token service plus access-token verification used by the guard.
type SessionTokens interface {
	TokenService
	ParseAccess(token string) (*auth.AccessClaims, error)
}
