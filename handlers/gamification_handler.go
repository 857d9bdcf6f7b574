package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"coachReflectAPI/internal/badge"
	"coachReflectAPI/middleware"
	"coachReflectAPI/services"
)

type GamificationHandler struct {
	streakService     *services.StreakService
	badgeService      *services.BadgeService
	userService       *services.UserService
	reflectionService *services.ReflectionService
}

func NewGamificationHandler(streakService *services.StreakService, badgeService *services.BadgeService, userService *services.UserService, reflectionService *services.ReflectionService) *GamificationHandler {
	return &GamificationHandler{
		streakService:     streakService,
		badgeService:      badgeService,
		userService:       userService,
		reflectionService: reflectionService,
	}
}

func (h *GamificationHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	st, err := h.streakService.GetStreak(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get streak")
		return
	}

	respondWithJSON(w, http.StatusOK, st)
}

// RecordActivity counts a qualifying activity event that is not a
// reflection save, e.g. completing an action item from a previous session.
func (h *GamificationHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.streakService.RecordActivity(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to record activity")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *GamificationHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	badges, err := h.badgeService.GetBadges(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get badges")
		return
	}
	if badges == nil {
		badges = []*badge.BadgeWithStatus{}
	}

	respondWithJSON(w, http.StatusOK, badges)
}

// CompleteTask re-evaluates task badges after the caller checks off action
// items. The total is derived from the user's stored reflections, so the
// client cannot inflate its own count.
func (h *GamificationHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := h.userService.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	total, err := h.reflectionService.ActionItemTotal(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to count action items")
		return
	}

	earned, err := h.badgeService.Evaluate(ctx, userID, badge.MetricTaskCount, total)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to evaluate badges")
		return
	}
	if earned == nil {
		earned = []*badge.Badge{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"badgesEarned": earned})
}

type markNotifiedRequest struct {
	BadgeIDs []uuid.UUID `json:"badgeIds"`
}

func (h *GamificationHandler) MarkBadgesNotified(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req markNotifiedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.badgeService.MarkNotified(ctx, clerkID, req.BadgeIDs); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to mark badges notified")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Badges marked notified"})
}
