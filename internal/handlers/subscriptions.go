package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/models"
)

// SubscriptionHandler implements channel subscription toggles and listings.
type SubscriptionHandler struct {
	Toggles Toggler
	Reader  ReadModel
}

// Toggle handles POST /subscription/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	toggleEdge(w, r, h.Toggles, models.EdgeSubscription, chi.URLParam(r, "channelId"))
}

// Subscribers handles GET /subscription/subscribers and lists the caller's subscribers.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	subscribers, err := h.Reader.Subscribers(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"subscribers": subscribers})
}

// Channels handles GET /subscription/channels and lists channels the caller subscribes to.
func (h SubscriptionHandler) Channels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := requireIdentity(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	channels, err := h.Reader.SubscribedChannels(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"channels": channels})
}
