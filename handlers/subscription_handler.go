package handlers

import (
	"context"
	"net/http"
	"time"

	"coachReflectAPI/internal/types/subscription"
	"coachReflectAPI/middleware"
	"coachReflectAPI/services"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

type subscriptionStatusResponse struct {
	Subscription *subscription.Subscription `json:"subscription"`
}

// GetSubscription returns the caller's current subscription mirror, null when
// they never subscribed.
func (h *SubscriptionHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sub, err := h.subscriptionService.GetSubscription(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get subscription")
		return
	}

	respondWithJSON(w, http.StatusOK, subscriptionStatusResponse{Subscription: sub})
}
