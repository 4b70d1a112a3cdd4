package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/reader"
)

// CommentHandler implements comment listings and writes.
type CommentHandler struct {
	Comments CommentWriter
	Reader   ReadModel
}

type commentRequest struct {
	Comment         string `json:"comment"`
	ParentCommentID string `json:"parentCommentId"`
}

type commentView struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"videoId"`
	OwnerID         string    `json:"ownerId"`
	Content         string    `json:"content"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func newCommentView(c models.Comment) commentView {
	return commentView{
		ID:              c.ID,
		VideoID:         c.VideoID,
		OwnerID:         c.OwnerID,
		Content:         c.Body,
		ParentCommentID: c.ParentCommentID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// List handles GET /comment/{videoId}?page=&limit=.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := reader.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	comments, err := h.Reader.TopLevelComments(ctx, chi.URLParam(r, "videoId"), page)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, comments)
}

// Replies handles GET /comment/{videoId}/{parentCommentId}/replies?page=&limit=.
func (h CommentHandler) Replies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := reader.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	replies, err := h.Reader.Replies(ctx, chi.URLParam(r, "videoId"), chi.URLParam(r, "parentCommentId"), page)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, replies)
}

// Add handles POST /comment/{videoId}. A parentCommentId in the body makes it a reply.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	comment, err := h.Comments.Add(ctx, user.ID, chi.URLParam(r, "videoId"), req.Comment, req.ParentCommentID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newCommentView(comment))
}

// Edit handles PATCH /comment/c/{commentId}.
func (h CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	comment, err := h.Comments.Edit(ctx, user.ID, chi.URLParam(r, "commentId"), req.Comment)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newCommentView(comment))
}

// Delete handles DELETE /comment/c/{commentId}. Replies to the comment are kept.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Comments.Remove(ctx, user.ID, chi.URLParam(r, "commentId")); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}
