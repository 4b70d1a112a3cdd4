package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/models"
)

// LikeHandler implements like toggles and the liked-videos listing.
type LikeHandler struct {
	Toggles Toggler
	Reader  ReadModel
}

// ToggleVideo handles POST /like/video/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	toggleEdge(w, r, h.Toggles, models.EdgeVideoLike, chi.URLParam(r, "videoId"))
}

// ToggleComment handles POST /like/comment/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	toggleEdge(w, r, h.Toggles, models.EdgeCommentLike, chi.URLParam(r, "commentId"))
}

// TogglePost handles POST /like/post/{postId}.
func (h LikeHandler) TogglePost(w http.ResponseWriter, r *http.Request) {
	toggleEdge(w, r, h.Toggles, models.EdgePostLike, chi.URLParam(r, "postId"))
}

// LikedVideos handles GET /like/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	videos, err := h.Reader.LikedVideos(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

func toggleEdge(w http.ResponseWriter, r *http.Request, toggles Toggler, kind models.EdgeKind, objectID string) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	result, err := toggles.Toggle(ctx, user.ID, objectID, kind)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}
