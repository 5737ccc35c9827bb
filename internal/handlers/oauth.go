package handlers

import (
	"net/http"
	"strconv"

	"credential-manager/internal/common/errors"
)

type StartFlowResponse struct {
	AuthURL string `json:"auth_url"`
}

// StartOAuthFlow returns the consent URL once the callback listener is bound.
// The exchange completes in the background.
func (h *Handlers) StartOAuthFlow(w http.ResponseWriter, r *http.Request) {
	id, err := credentialID(r)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}

	authURL, err := h.flows.StartOAuthFlow(r.Context(), id)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, StartFlowResponse{AuthURL: authURL})
}

// CurrentFlow reports the most recent flow for diagnostics
func (h *Handlers) CurrentFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flows.CurrentFlow()
	if !ok {
		h.sendJSONError(w, r, errors.NotFoundError("oauth flow"))
		return
	}
	h.sendJSON(w, http.StatusOK, flow)
}

// GetAccessToken returns a token valid for at least skew seconds, refreshing
// it when needed.
func (h *Handlers) GetAccessToken(w http.ResponseWriter, r *http.Request) {
	id, err := credentialID(r)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}

	var skew int64
	if raw := r.URL.Query().Get("skew"); raw != "" {
		skew, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.sendJSONError(w, r, errors.ValidationError("skew must be an integer number of seconds"))
			return
		}
	}

	token, err := h.tokens.EnsureValidAccessToken(r.Context(), id, skew)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, token)
}

// RefreshAccessToken forces a refresh grant
func (h *Handlers) RefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	id, err := credentialID(r)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}

	token, err := h.tokens.RefreshAccessToken(r.Context(), id)
	if err != nil {
		h.sendJSONError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, token)
}
