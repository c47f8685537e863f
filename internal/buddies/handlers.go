// internal/buddies/handlers.go

package buddies

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
)

// Handler handles buddy matching HTTP requests
type Handler struct {
	service Service
	log     *logger.Logger
}

// NewHandler creates a new buddies handler
func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "buddies")}
}

// ListCandidates handles GET /events/{eventId}/buddies/candidates
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	eventID, ok := pathID(w, r, "eventId", "Invalid event ID")
	if !ok {
		return
	}

	candidates, err := h.service.ListPotentialMatches(r.Context(), userID, eventID, utils.QueryLimit(r))
	if err != nil {
		h.fail(w, err, "Failed to list buddy candidates")
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	}, http.StatusOK)
}

// PreviewCompatibility handles GET /events/{eventId}/buddies/compatibility/{userId}
func (h *Handler) PreviewCompatibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	eventID, ok := pathID(w, r, "eventId", "Invalid event ID")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "userId", "Invalid user ID")
	if !ok {
		return
	}

	preview, err := h.service.PreviewCompatibility(r.Context(), userID, eventID, targetID)
	if err != nil {
		h.fail(w, err, "Failed to compute compatibility")
		return
	}

	utils.SuccessResponse(w, preview, http.StatusOK)
}

// RequestMatch handles POST /events/{eventId}/buddies
func (h *Handler) RequestMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	eventID, ok := pathID(w, r, "eventId", "Invalid event ID")
	if !ok {
		return
	}

	var dto RequestMatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithAppError(w, err, "Invalid request body")
		return
	}

	match, err := h.service.RequestMatch(r.Context(), userID, eventID, &dto)
	if err != nil {
		h.fail(w, err, "Failed to request buddy match")
		return
	}

	utils.SuccessResponse(w, match, http.StatusCreated)
}

// RespondMatch handles POST /buddies/{id}/respond
func (h *Handler) RespondMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	matchID, ok := pathID(w, r, "id", "Invalid match ID")
	if !ok {
		return
	}

	var dto RespondMatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithAppError(w, err, "Invalid request body")
		return
	}

	match, err := h.service.RespondMatch(r.Context(), userID, matchID, dto.Action)
	if err != nil {
		h.fail(w, err, "Failed to respond to buddy match")
		return
	}

	utils.SuccessResponse(w, match, http.StatusOK)
}

// CancelMatch handles POST /buddies/{id}/cancel
func (h *Handler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	matchID, ok := pathID(w, r, "id", "Invalid match ID")
	if !ok {
		return
	}

	match, err := h.service.CancelMatch(r.Context(), userID, matchID)
	if err != nil {
		h.fail(w, err, "Failed to cancel buddy match")
		return
	}

	utils.SuccessResponse(w, match, http.StatusOK)
}

// GetMatch handles GET /buddies/{id}
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	matchID, ok := pathID(w, r, "id", "Invalid match ID")
	if !ok {
		return
	}

	view, err := h.service.GetMatch(r.Context(), userID, matchID)
	if err != nil {
		h.fail(w, err, "Failed to get buddy match")
		return
	}

	utils.SuccessResponse(w, view, http.StatusOK)
}

// ListMyMatches handles GET /buddies?status=
func (h *Handler) ListMyMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	matches, err := h.service.ListMyMatches(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, err, "Failed to list buddy matches")
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	}, http.StatusOK)
}

// GetStats handles GET /buddies/stats for the caller's own matches
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get buddy stats")
		return
	}

	utils.SuccessResponse(w, stats, http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	utils.LogAppError(h.log, fallback, err)
	utils.RespondWithAppError(w, err, fallback)
}

func pathID(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		utils.ErrorResponse(w, message, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
