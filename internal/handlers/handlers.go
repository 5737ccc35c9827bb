// Package handlers exposes the credential manager's operations as a JSON API
// for the hosting application.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"credential-manager/internal/circuitbreaker"
	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/oauth2"
	"credential-manager/internal/storage"
)

type CredentialService interface {
	List(ctx context.Context) ([]*storage.Credential, error)
	Add(ctx context.Context, req oauth2.AddCredentialRequest) (*storage.Credential, error)
	Names(ctx context.Context) ([]string, error)
}

type FlowStarter interface {
	StartOAuthFlow(ctx context.Context, credentialID int64) (string, error)
	CurrentFlow() (oauth2.Flow, bool)
}

type TokenService interface {
	EnsureValidAccessToken(ctx context.Context, credentialID int64, skewSeconds int64) (*oauth2.AccessToken, error)
	RefreshAccessToken(ctx context.Context, credentialID int64) (*oauth2.AccessToken, error)
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

// BreakerReporter exposes the provider circuit breaker to the health check.
type BreakerReporter interface {
	Stats() circuitbreaker.Stats
	IsOpen() bool
}

type Handlers struct {
	credentials CredentialService
	flows       FlowStarter
	tokens      TokenService
	health      HealthChecker
	breaker     BreakerReporter
	logger      logging.Logger
}

// New builds the API handlers. breaker may be nil.
func New(credentials CredentialService, flows FlowStarter, tokens TokenService, health HealthChecker, breaker BreakerReporter, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		credentials: credentials,
		flows:       flows,
		tokens:      tokens,
		health:      health,
		breaker:     breaker,
		logger:      logger.WithFields(logging.String("component", "api")),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to encode response", logging.Err(err))
	}
}

func (h *Handlers) sendJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	errType := errors.GetType(err)

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", err, logging.String("path", r.URL.Path))
	} else {
		h.logger.Debug("Request rejected", logging.String("path", r.URL.Path), logging.String("type", string(errType)))
	}

	h.sendJSON(w, status, ErrorResponse{Error: message, Type: string(errType)})
}

func statusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeNotFound:
		return http.StatusNotFound
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeMissingRefreshToken, errors.ErrTypeBind:
		return http.StatusConflict
	case errors.ErrTypeProvider:
		return http.StatusBadGateway
	case errors.ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// credentialID reads the {id} route variable.
func credentialID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ValidationError("credential id must be a positive integer")
	}
	return id, nil
}
