package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"coachReflectAPI/internal/chat"
	"coachReflectAPI/internal/ratelimit"
	"coachReflectAPI/middleware"
	"coachReflectAPI/services"
)

type ChatHandler struct {
	chatService *services.ChatService
	limiter     *ratelimit.Limiter
}

func NewChatHandler(chatService *services.ChatService, limiter *ratelimit.Limiter) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		limiter:     limiter,
	}
}

// SendMessage runs one assistant turn. On top of the global middleware
// limit, chat has its own per-user limit because every request costs a
// model call.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if h.limiter != nil {
		res, err := h.limiter.Check(ctx, middleware.FeatureKey("chat", clerkID), middleware.ChatLimit)
		if err != nil {
			log.Printf("Chat rate limit check failed for %s: %v", clerkID, err)
		}
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.ResetIn.Seconds())))
			respondWithError(w, http.StatusTooManyRequests, "Chat rate limit exceeded")
			return
		}
	}

	var req chat.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.chatService.SendMessage(ctx, clerkID, req.Content)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, chat.SendMessageResponse{Reply: reply})
}

func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.chatService.GetHistory(ctx, clerkID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get chat history")
		return
	}
	if messages == nil {
		messages = []*chat.Message{}
	}

	respondWithJSON(w, http.StatusOK, messages)
}
