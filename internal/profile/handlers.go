// internal/profile/handlers.go

package profile

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
)

// Handler handles profile-related HTTP requests
type Handler struct {
	service Service
	log     *logger.Logger
}

// NewHandler creates a new profile handler
func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "profile")}
}

// GetMyProfile returns the caller's matching snapshot
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.service.GetMyProfile(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get profile")
		return
	}

	utils.SuccessResponse(w, snapshot, http.StatusOK)
}

// GetUserProfile returns another user's public summary
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	summary, err := h.service.GetProfile(r.Context(), userID, viewerID)
	if err != nil {
		h.fail(w, err, "Failed to get profile")
		return
	}

	utils.SuccessResponse(w, summary, http.StatusOK)
}

// GetBlockedUsers handles getting blocked users list
func (h *Handler) GetBlockedUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	blockedIDs, err := h.service.GetBlockedUsers(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to get blocked users")
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"blocked_users": blockedIDs,
	}, http.StatusOK)
}

// BlockUser handles blocking a user
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	blockedID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.service.BlockUser(r.Context(), userID, blockedID); err != nil {
		h.fail(w, err, "Failed to block user")
		return
	}

	utils.MessageResponse(w, "User blocked", http.StatusOK)
}

// UnblockUser handles unblocking a user
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ErrorResponse(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	blockedID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.service.UnblockUser(r.Context(), userID, blockedID); err != nil {
		h.fail(w, err, "Failed to unblock user")
		return
	}

	utils.MessageResponse(w, "User unblocked", http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	utils.LogAppError(h.log, fallback, err)
	utils.RespondWithAppError(w, err, fallback)
}
