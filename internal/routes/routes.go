package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/noticeboard/internal/handlers"
)

// NewRouter sets up the API routes. auth guards everything under /api.
func NewRouter(h *handlers.NotificationHandler, auth func(http.Handler) http.Handler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v2").Subrouter()
	api.Use(auth)
	api.HandleFunc("/notifications", h.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/refresh", h.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{source}/{id}/actions/{action}", h.Invoke).Methods(http.MethodPost)

	return router
}
