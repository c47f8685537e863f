// internal/buddies/routes.go

package buddies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
)

// RegisterRoutes registers all buddy routes. hub may be nil when realtime
// delivery is disabled.
func RegisterRoutes(router *mux.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Per event
	api.HandleFunc("/events/{eventId}/buddies/candidates", handler.ListCandidates).Methods("GET")
	api.HandleFunc("/events/{eventId}/buddies/compatibility/{userId}", handler.PreviewCompatibility).Methods("GET")
	api.HandleFunc("/events/{eventId}/buddies", handler.RequestMatch).Methods("POST")

	// Matches
	api.HandleFunc("/buddies", handler.ListMyMatches).Methods("GET")
	api.HandleFunc("/buddies/stats", handler.GetStats).Methods("GET")
	api.HandleFunc("/buddies/{id}", handler.GetMatch).Methods("GET")
	api.HandleFunc("/buddies/{id}/respond", handler.RespondMatch).Methods("POST")
	api.HandleFunc("/buddies/{id}/cancel", handler.CancelMatch).Methods("POST")

	if hub != nil {
		router.Handle("/ws", authMiddleware.Authenticate(http.HandlerFunc(hub.ServeWS))).Methods("GET")
	}
}
