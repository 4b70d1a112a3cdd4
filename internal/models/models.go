package models

import "time"

// User represents an account (and its channel) within the VidTube platform.
type User struct {
	ID               string
	Username         string
	Email            string
	FullName         string
	Password         string
	Avatar           string
	CoverImage       string
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Video is the read model used by likes and listings.
type Video struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	Thumbnail       string
	VideoURL        string
	DurationSeconds int
	IsPublished     bool
	CreatedAt       time.Time
}

// Comment is a top-level comment or a one-level reply on a video.
type Comment struct {
	ID              string
	VideoID         string
	OwnerID         string
	Body            string
	ParentCommentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ImageField names one of the profile images a user can replace.
type ImageField string

const (
	ImageAvatar     ImageField = "avatar"
	ImageCoverImage ImageField = "coverImage"
)

// EdgeKind names a relationship edge category.
type EdgeKind string

const (
	EdgeVideoLike    EdgeKind = "video-like"
	EdgeCommentLike  EdgeKind = "comment-like"
	EdgePostLike     EdgeKind = "post-like"
	EdgeSubscription EdgeKind = "subscription"
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeVideoLike, EdgeCommentLike, EdgePostLike, EdgeSubscription:
		return true
	}
	return false
}

// Edge is a directed relationship. Its existence is the liked/subscribed state.
type Edge struct {
	SubjectID string
	ObjectID  string
	Kind      EdgeKind
	CreatedAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// CommentView is a comment as returned by listings, joined with its owner.
type CommentView struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"videoId"`
	Content         string    `json:"content"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Owner           OwnerView `json:"owner"`
	RepliesCount    *int      `json:"repliesCount,omitempty"`
	LikeCount       *int      `json:"likeCount,omitempty"`
}

// OwnerView is the public slice of a user embedded in listings.
type OwnerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ChannelProfile is a user's public channel with subscription counts.
type ChannelProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	Avatar            string `json:"avatar,omitempty"`
	CoverImage        string `json:"coverImage,omitempty"`
	SubscriberCount   int    `json:"subscriberCount"`
	SubscribedToCount int    `json:"subscribedToCount"`
	IsSubscribed      *bool  `json:"isSubscribed,omitempty"`
}

// LikedVideo is a video the caller liked, with its owner.
type LikedVideo struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Thumbnail       string    `json:"thumbnail"`
	VideoURL        string    `json:"videoUrl"`
	DurationSeconds int       `json:"duration"`
	LikedAt         time.Time `json:"likedAt"`
	Owner           OwnerView `json:"owner"`
}

// ChannelSummary is an entry in subscriber and subscription listings.
type ChannelSummary struct {
	Owner        OwnerView `json:"channel"`
	SubscribedAt time.Time `json:"subscribedAt"`
}
