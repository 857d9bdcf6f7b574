package handlers

import (
	"context"
	"net/http"
	"time"

	"coachReflectAPI/middleware"
	"coachReflectAPI/services"
)

type ReferralHandler struct {
	referralService *services.ReferralService
}

func NewReferralHandler(referralService *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

// GetReferralInfo returns the caller's own code plus invite and credit
// counters. Attribution and settlement are webhook-driven and have no
// client-callable endpoint.
func (h *ReferralHandler) GetReferralInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	stats, err := h.referralService.GetStats(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get referral info")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
