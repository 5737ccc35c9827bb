package handlers

import (
	"encoding/json"
	"net/http"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/oauth2"
	"credential-manager/internal/storage"
)

// CredentialResponse is a credential as returned by the API. The client
// secret is never included.
type CredentialResponse struct {
	ID          int64  `json:"id"`
	ServiceName string `json:"service_name"`
	ClientID    string `json:"client_id"`
}

func toCredentialResponse(cred *storage.Credential) CredentialResponse {
	return CredentialResponse{
		ID:          cred.ID,
		ServiceName: cred.ServiceName,
		ClientID:    cred.ClientID,
	}
}

// ListCredentials returns every stored credential
func (h *Handlers) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credentials.List(r.Context())
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}

	response := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		response = append(response, toCredentialResponse(cred))
	}
	h.sendJSON(w, http.StatusOK, response)
}

// CredentialNames returns the service name of every stored credential
func (h *Handlers) CredentialNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.credentials.Names(r.Context())
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, names)
}

// AddCredential stores a new client id and secret
func (h *Handlers) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req oauth2.AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSONError(w, r, errors.ValidationError("invalid JSON body"))
		return
	}

	cred, err := h.credentials.Add(r.Context(), req)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, toCredentialResponse(cred))
}
