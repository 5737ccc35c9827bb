package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"credential-manager/internal/middleware"
)

// Router builds the API routes
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(h.logger))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/credentials", h.ListCredentials).Methods(http.MethodGet)
	api.HandleFunc("/credentials", h.AddCredential).Methods(http.MethodPost)
	api.HandleFunc("/credentials/names", h.CredentialNames).Methods(http.MethodGet)
	api.HandleFunc("/credentials/{id}/oauth/start", h.StartOAuthFlow).Methods(http.MethodPost)
	api.HandleFunc("/credentials/{id}/token", h.GetAccessToken).Methods(http.MethodGet)
	api.HandleFunc("/credentials/{id}/token/refresh", h.RefreshAccessToken).Methods(http.MethodPost)
	api.HandleFunc("/oauth/flow", h.CurrentFlow).Methods(http.MethodGet)

	return r
}
