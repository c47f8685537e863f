// internal/events/routes.go

package events

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
)

// RegisterRoutes registers all event routes. Event reads are public; a valid
// token only adds viewer context.
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/events").Subrouter()
	api.Use(authMiddleware.OptionalAuthenticate)

	api.HandleFunc("/{eventId}", handler.GetEvent).Methods("GET")
	api.HandleFunc("/{eventId}/similar", handler.ListSimilarEvents).Methods("GET")
}
