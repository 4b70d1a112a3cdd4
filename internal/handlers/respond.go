package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

const maxJSONBody = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// respondError renders err as {"error": message} with the status of its kind. Only
// internal failures are logged as errors; their cause never reaches the client.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)
	status := apperr.HTTPStatus(err)

	switch apperr.KindOf(err) {
	case apperr.KindInternal:
		logger.Error("request failed", "status", status, "error", err)
	default:
		logger.Info("request rejected", "status", status, "reason", apperr.PublicMessage(err))
	}

	respondJSON(ctx, w, status, map[string]string{"error": apperr.PublicMessage(err)})
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

// requireIdentity returns the caller attached by the session guard.
func requireIdentity(ctx context.Context) (models.User, error) {
	user, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return models.User{}, apperr.Auth("unauthorized request")
	}
	return user, nil
}
