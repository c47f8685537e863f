// internal/events/handlers.go

package events

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
)

// Handler handles event HTTP requests
type Handler struct {
	service Service
	log     *logger.Logger
}

// NewHandler creates a new events handler
func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log.With("component", "events")}
}

// GetEvent returns an event; signed-in viewers also get their attendance
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(mux.Vars(r)["eventId"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	var viewer *uuid.UUID
	if userID, ok := auth.GetUserIDFromContext(r.Context()); ok {
		viewer = &userID
	}

	event, err := h.service.ViewEvent(r.Context(), eventID, viewer)
	if err != nil {
		h.fail(w, err, "Failed to get event")
		return
	}

	utils.SuccessResponse(w, event, http.StatusOK)
}

// ListSimilarEvents handles GET /events/{eventId}/similar
func (h *Handler) ListSimilarEvents(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(mux.Vars(r)["eventId"])
	if err != nil {
		utils.ErrorResponse(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	list, err := h.service.ListSimilarEvents(r.Context(), eventID, utils.QueryLimit(r))
	if err != nil {
		h.fail(w, err, "Failed to list similar events")
		return
	}

	utils.SuccessResponse(w, map[string]interface{}{
		"events": list,
		"count":  len(list),
	}, http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	utils.LogAppError(h.log, fallback, err)
	utils.RespondWithAppError(w, err, fallback)
}
