package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"coachReflectAPI/internal/reflection"
	"coachReflectAPI/middleware"
	"coachReflectAPI/services"
)

type ReflectionHandler struct {
	reflectionService *services.ReflectionService
}

func NewReflectionHandler(reflectionService *services.ReflectionService) *ReflectionHandler {
	return &ReflectionHandler{
		reflectionService: reflectionService,
	}
}

func (h *ReflectionHandler) CreateReflection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req reflection.CreateReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.reflectionService.CreateReflection(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ReflectionHandler) ListReflections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	reflections, err := h.reflectionService.ListReflections(ctx, clerkID, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list reflections")
		return
	}
	if reflections == nil {
		reflections = []*reflection.Reflection{}
	}

	respondWithJSON(w, http.StatusOK, reflections)
}

func (h *ReflectionHandler) GetReflection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid reflection ID")
		return
	}

	refl, err := h.reflectionService.GetReflection(ctx, clerkID, id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Reflection not found")
		return
	}

	respondWithJSON(w, http.StatusOK, refl)
}

func (h *ReflectionHandler) UpdateReflection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid reflection ID")
		return
	}

	var req reflection.UpdateReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	refl, err := h.reflectionService.UpdateReflection(ctx, clerkID, id, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, refl)
}

func (h *ReflectionHandler) DeleteReflection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid reflection ID")
		return
	}

	if err := h.reflectionService.DeleteReflection(ctx, clerkID, id); err != nil {
		respondWithError(w, http.StatusNotFound, "Reflection not found")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Reflection deleted"})
}
