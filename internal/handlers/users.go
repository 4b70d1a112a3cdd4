package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/notify"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

const maxUploadBytes = 8 << 20

// UserHandler implements account endpoints.
type UserHandler struct {
	Users     UserStore
	Passwords PasswordService
	Reader    ReadModel
	Assets    AssetStore
	Notifier  Notifier
	NowFunc   func() time.Time
}

type registerRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

type userView struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar,omitempty"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func newUserView(u models.User) userView {
	return userView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// Register handles POST /user/register. It accepts a JSON body, or a multipart form whose
// optional avatar and coverImage parts are uploaded to the asset store.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var (
		req   registerRequest
		files map[string]multipart.File
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var err error
		req, files, err = parseRegisterForm(r)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		defer func() {
			for _, f := range files {
				_ = f.Close()
			}
		}()
	} else if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validation.Struct(req); err != nil {
		respondError(ctx, w, err)
		return
	}

	hash, err := h.Passwords.Hash(req.Password)
	if err != nil {
		respondError(ctx, w, apperr.Internal("failed to secure password", err))
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	uploaded, err := h.uploadAssets(ctx, user.ID, files)
	if err != nil {
		h.discardAssets(ctx, uploaded)
		respondError(ctx, w, err)
		return
	}
	user.Avatar = uploaded["avatar"]
	user.CoverImage = uploaded["coverImage"]

	if err := h.Users.Create(ctx, user); err != nil {
		h.discardAssets(ctx, uploaded)
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperr.Conflict("user with this username or email already exists"))
			return
		}
		respondError(ctx, w, apperr.Internal("failed to create account", err))
		return
	}

	if h.Notifier != nil {
		if err := h.Notifier.Enqueue(ctx, notify.WelcomeMessage(user.Email, user.Username, user.FullName)); err != nil {
			logger.Warn("welcome message not queued", "user_id", user.ID, "error", err)
		}
	}

	logger.Info("user registered", "user_id", user.ID)
	respondJSON(ctx, w, http.StatusCreated, newUserView(user))
}

func parseRegisterForm(r *http.Request) (registerRequest, map[string]multipart.File, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return registerRequest{}, nil, apperr.Validation("invalid multipart form")
	}

	req := registerRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}

	files := make(map[string]multipart.File)
	for _, field := range []string{"avatar", "coverImage"} {
		file, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			for _, f := range files {
				_ = f.Close()
			}
			return registerRequest{}, nil, apperr.Validation(fmt.Sprintf("invalid %s upload", field))
		}
		files[field] = file
	}

	return req, files, nil
}

// uploadAssets stores each image and returns the locations written so far, even on error.
func (h UserHandler) uploadAssets(ctx context.Context, userID string, files map[string]multipart.File) (map[string]string, error) {
	uploaded := make(map[string]string, len(files))
	if len(files) == 0 {
		return uploaded, nil
	}
	if h.Assets == nil {
		return uploaded, apperr.Validation("media uploads are not enabled")
	}

	for _, field := range []string{"avatar", "coverImage"} {
		file, ok := files[field]
		if !ok {
			continue
		}

		kind, err := mimetype.DetectReader(file)
		if err != nil {
			return uploaded, apperr.Internal("failed to read upload", err)
		}
		if !strings.HasPrefix(kind.String(), "image/") {
			return uploaded, apperr.Validation(field + " must be an image")
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return uploaded, apperr.Internal("failed to read upload", err)
		}

		name := fmt.Sprintf("users/%s/%s-%s%s", userID, field, uuid.NewString(), kind.Extension())
		location, err := h.Assets.Save(ctx, name, file)
		if err != nil {
			return uploaded, apperr.Internal("failed to store "+field, err)
		}
		uploaded[field] = location
	}

	return uploaded, nil
}

func (h UserHandler) discardAssets(ctx context.Context, uploaded map[string]string) {
	for field, location := range uploaded {
		if err := h.Assets.Delete(ctx, location); err != nil {
			logging.FromContext(ctx).Error("failed to delete orphaned upload", "field", field, "location", location, "error", err)
		}
	}
}

// UpdateAvatar handles PATCH /user/update-avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, models.ImageAvatar)
}

// UpdateCoverImage handles PATCH /user/update-cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, models.ImageCoverImage)
}

// replaceImage uploads the multipart part named after field, records its location and
// then deletes the image it replaced.
func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, field models.ImageField) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(ctx, w, apperr.Validation("invalid multipart form"))
		return
	}
	file, _, err := r.FormFile(string(field))
	if err != nil {
		respondError(ctx, w, apperr.Validation(fmt.Sprintf("%s file is required", field)))
		return
	}
	defer file.Close()

	uploaded, err := h.uploadAssets(ctx, user.ID, map[string]multipart.File{string(field): file})
	if err != nil {
		h.discardAssets(ctx, uploaded)
		respondError(ctx, w, err)
		return
	}
	location := uploaded[string(field)]

	updated, previous, err := h.Users.UpdateImage(ctx, user.ID, field, location, h.now())
	if err != nil {
		h.discardAssets(ctx, uploaded)
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperr.NotFound("user not found"))
			return
		}
		respondError(ctx, w, apperr.Internal("failed to update "+string(field), err))
		return
	}

	if previous != "" && previous != location {
		if err := h.Assets.Delete(ctx, previous); err != nil {
			logger.Error("failed to delete replaced image", "field", field, "location", previous, "error", err)
		}
	}

	logger.Info("profile image replaced", "user_id", user.ID, "field", field)
	respondJSON(ctx, w, http.StatusOK, newUserView(updated))
}

// CurrentUser handles GET /user/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserView(user))
}

// ChangePassword handles PATCH /user/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Passwords.ChangePassword(ctx, user, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password changed"})
}

// UpdateAccount handles PATCH /user/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		respondError(ctx, w, err)
		return
	}

	updated, err := h.Users.UpdateDetails(ctx, user.ID, req.FullName, req.Email, h.now())
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, apperr.Conflict("email is already in use"))
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, apperr.NotFound("user not found"))
		default:
			respondError(ctx, w, apperr.Internal("failed to update account", err))
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserView(updated))
}

// ChannelProfile handles GET /user/channel/{username}. Signed-in callers also learn whether
// they are subscribed.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requesterID := ""
	if user, ok := auth.IdentityFromContext(ctx); ok {
		requesterID = user.ID
	}

	profile, err := h.Reader.ChannelProfile(ctx, chi.URLParam(r, "username"), requesterID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}
