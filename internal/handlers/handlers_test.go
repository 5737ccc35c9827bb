package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"credential-manager/internal/circuitbreaker"
	"credential-manager/internal/common/errors"
	"credential-manager/internal/handlers"
	"credential-manager/internal/oauth2"
	"credential-manager/internal/storage"
	"credential-manager/internal/testutil"
)

type MockFlows struct {
	mock.Mock
}

func (m *MockFlows) StartOAuthFlow(ctx context.Context, credentialID int64) (string, error) {
	args := m.Called(ctx, credentialID)
	return args.String(0), args.Error(1)
}

func (m *MockFlows) CurrentFlow() (oauth2.Flow, bool) {
	args := m.Called()
	return args.Get(0).(oauth2.Flow), args.Bool(1)
}

type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) EnsureValidAccessToken(ctx context.Context, credentialID int64, skewSeconds int64) (*oauth2.AccessToken, error) {
	args := m.Called(ctx, credentialID, skewSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.AccessToken), args.Error(1)
}

func (m *MockTokens) RefreshAccessToken(ctx context.Context, credentialID int64) (*oauth2.AccessToken, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.AccessToken), args.Error(1)
}

type testAPI struct {
	router http.Handler
	store  *testutil.MockStorage
	flows  *MockFlows
	tokens *MockTokens
}

func newTestAPI() *testAPI {
	store := testutil.NewMockStorage()
	flows := &MockFlows{}
	tokens := &MockTokens{}
	h := handlers.New(oauth2.NewCredentialService(store), flows, tokens, store, nil, nil)
	return &testAPI{router: h.Router(), store: store, flows: flows, tokens: tokens}
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()

	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCredentials(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/api/credentials", `{"service_name":"youtube","client_id":"cid","client_secret":"shh"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shh")

	var created handlers.CredentialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "youtube", created.ServiceName)
	assert.NotZero(t, created.ID)

	rec = api.do(http.MethodGet, "/api/credentials", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "client_secret")

	var listed []handlers.CredentialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, []handlers.CredentialResponse{created}, listed)
}

func TestCredentialNames(t *testing.T) {
	api := newTestAPI()
	for _, name := range []string{"youtube", "twitch"} {
		rec := api.do(http.MethodPost, "/api/credentials", `{"service_name":"`+name+`","client_id":"cid","client_secret":"shh"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(http.MethodGet, "/api/credentials/names", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"youtube", "twitch"}, names)

	api.store.SetError("ListCredentials", testutil.ErrDatabaseLocked)
	rec = api.do(http.MethodGet, "/api/credentials/names", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAddCredential_Invalid(t *testing.T) {
	api := newTestAPI()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing secret", `{"service_name":"youtube","client_id":"cid"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/credentials", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", decodeError(t, rec).Type)
		})
	}
}

func TestListCredentials_StorageFailure(t *testing.T) {
	api := newTestAPI()
	api.store.SetError("ListCredentials", testutil.ErrDatabaseLocked)

	rec := api.do(http.MethodGet, "/api/credentials", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "persistence", decodeError(t, rec).Type)
}

func TestStartOAuthFlow(t *testing.T) {
	api := newTestAPI()
	api.flows.On("StartOAuthFlow", mock.Anything, int64(3)).Return("https://accounts.example/auth?state=s", nil)

	rec := api.do(http.MethodPost, "/api/credentials/3/oauth/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.StartFlowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://accounts.example/auth?state=s", resp.AuthURL)
	api.flows.AssertExpectations(t)
}

func TestStartOAuthFlow_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unknown credential", errors.NotFoundError("credential 3"), http.StatusNotFound, "not_found"},
		{"port in use", errors.BindError("127.0.0.1:1421", assert.AnError), http.StatusConflict, "bind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.flows.On("StartOAuthFlow", mock.Anything, int64(3)).Return("", tt.err)

			rec := api.do(http.MethodPost, "/api/credentials/3/oauth/start", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, decodeError(t, rec).Type)
		})
	}

	t.Run("bad id", func(t *testing.T) {
		api := newTestAPI()
		rec := api.do(http.MethodPost, "/api/credentials/abc/oauth/start", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		api.flows.AssertNotCalled(t, "StartOAuthFlow", mock.Anything, mock.Anything)
	})
}

func TestCurrentFlow(t *testing.T) {
	api := newTestAPI()
	api.flows.On("CurrentFlow").Return(oauth2.Flow{}, false).Once()
	api.flows.On("CurrentFlow").Return(oauth2.Flow{ID: "flow-1", CredentialID: 3, State: oauth2.FlowPersisted}, true).Once()

	rec := api.do(http.MethodGet, "/api/oauth/flow", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodGet, "/api/oauth/flow", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var flow oauth2.Flow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flow))
	assert.Equal(t, oauth2.FlowPersisted, flow.State)
}

func TestGetAccessToken(t *testing.T) {
	api := newTestAPI()
	api.tokens.On("EnsureValidAccessToken", mock.Anything, int64(1), int64(120)).
		Return(&oauth2.AccessToken{AccessToken: "A", ExpiresAt: "2099-12-31 23:59:59"}, nil)
	api.tokens.On("EnsureValidAccessToken", mock.Anything, int64(1), int64(0)).
		Return(nil, errors.MissingRefreshTokenError(1))

	rec := api.do(http.MethodGet, "/api/credentials/1/token?skew=120", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var token oauth2.AccessToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "A", token.AccessToken)
	assert.Equal(t, "2099-12-31 23:59:59", token.ExpiresAt)

	rec = api.do(http.MethodGet, "/api/credentials/1/token", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "missing_refresh_token", decodeError(t, rec).Type)

	rec = api.do(http.MethodGet, "/api/credentials/1/token?skew=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshAccessToken(t *testing.T) {
	api := newTestAPI()
	api.tokens.On("RefreshAccessToken", mock.Anything, int64(2)).
		Return(nil, errors.ProviderError("refresh token grant failed", assert.AnError).WithCode("invalid_grant"))
	api.tokens.On("RefreshAccessToken", mock.Anything, int64(5)).
		Return(&oauth2.AccessToken{AccessToken: "B", ExpiresAt: "2030-01-01 00:00:00"}, nil)

	rec := api.do(http.MethodPost, "/api/credentials/2/token/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "provider", decodeError(t, rec).Type)

	rec = api.do(http.MethodPost, "/api/credentials/5/token/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage_status":"healthy"`)
}

func TestHealthCheck_ReportsProviderBreaker(t *testing.T) {
	store := testutil.NewMockStorage()
	breaker := circuitbreaker.NewGoBreaker("oauth2-provider", circuitbreaker.Config{
		MaxFailures:           1,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	}, nil)
	router := handlers.New(oauth2.NewCredentialService(store), &MockFlows{}, &MockTokens{}, store, breaker, nil).Router()

	get := func() map[string]any {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	body := get()
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "closed", body["provider_breaker"].(map[string]any)["state"])

	_ = breaker.Execute(context.Background(), func() error { return assert.AnError })

	body = get()
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "open", body["provider_breaker"].(map[string]any)["state"])
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodDelete, "/api/credentials", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

var _ storage.Storage = (*testutil.MockStorage)(nil)
