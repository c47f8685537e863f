// internal/profile/routes.go

package profile

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-events/internal/auth"
)

// RegisterRoutes registers all profile routes
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/profile", handler.GetMyProfile).Methods("GET")
	api.HandleFunc("/users/{id}/profile", handler.GetUserProfile).Methods("GET")

	// Blocking
	api.HandleFunc("/profile/blocked", handler.GetBlockedUsers).Methods("GET")
	api.HandleFunc("/users/{id}/block", handler.BlockUser).Methods("POST")
	api.HandleFunc("/users/{id}/block", handler.UnblockUser).Methods("DELETE")
}
