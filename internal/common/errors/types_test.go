package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeNotFound,
				Message: "credential 7 not found",
			},
			want: "not_found: credential 7 not found",
		},
		{
			name: "error with code",
			appError: &AppError{
				Type:    ErrTypeProvider,
				Message: "token exchange failed",
				Code:    "invalid_grant",
			},
			want: "provider: token exchange failed: code=invalid_grant",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypePersistence,
				Message: "failed to upsert token",
				Cause:   errors.New("database is locked"),
			},
			want: "persistence: failed to upsert token: cause=database is locked",
		},
		{
			name: "error with context is rendered in key order",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "field validation failed",
				Context: map[string]interface{}{
					"value": "",
					"field": "client_id",
				},
			},
			want: "validation: field validation failed: context={field=client_id, value=}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	appError := ProviderError("token request failed", cause)

	if !errors.Is(appError, cause) {
		t.Errorf("errors.Is(appError, cause) = false, want true")
	}

	if NotFoundError("token").Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestAppError_WithContextAndCode(t *testing.T) {
	appError := ValidationError("validation failed")

	result := appError.WithContext("field", "service_name").WithCode("VAL001")

	if result != appError {
		t.Error("WithContext/WithCode should return the same instance")
	}
	if appError.Context["field"] != "service_name" {
		t.Errorf("Context[field] = %v, want service_name", appError.Context["field"])
	}
	if appError.Code != "VAL001" {
		t.Errorf("Code = %v, want VAL001", appError.Code)
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name    string
		err     *AppError
		errType ErrorType
		message string
	}{
		{"not found", NotFoundError("credential 3"), ErrTypeNotFound, "credential 3 not found"},
		{"bind", BindError("127.0.0.1:1421", cause), ErrTypeBind, "failed to bind callback listener on 127.0.0.1:1421"},
		{"provider", ProviderError("bad response", cause), ErrTypeProvider, "bad response"},
		{"state mismatch", StateMismatchError(), ErrTypeStateMismatch, "callback state does not match the issued state"},
		{"missing refresh token", MissingRefreshTokenError(4), ErrTypeMissingRefreshToken, "no usable refresh token for credential 4"},
		{"persistence", PersistenceError("write failed", cause), ErrTypePersistence, "write failed"},
		{"no callback", NoCallbackError(), ErrTypeNoCallback, "callback listener exited without delivering a callback"},
		{"config", ConfigError("bad port"), ErrTypeConfig, "bad port"},
		{"internal", InternalError("oops", cause), ErrTypeInternal, "oops"},
		{"timeout", TimeoutError("token exchange"), ErrTypeTimeout, "timeout during token exchange"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.errType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.errType)
			}
			if tt.err.Message != tt.message {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.message)
			}
		})
	}
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		errType ErrorType
		want    bool
	}{
		{
			name:    "matching type",
			err:     NotFoundError("token"),
			errType: ErrTypeNotFound,
			want:    true,
		},
		{
			name:    "wrapped app error",
			err:     fmt.Errorf("flow failed: %w", StateMismatchError()),
			errType: ErrTypeStateMismatch,
			want:    true,
		},
		{
			name:    "non-matching type",
			err:     NotFoundError("token"),
			errType: ErrTypeProvider,
			want:    false,
		},
		{
			name:    "non-app error",
			err:     errors.New("regular error"),
			errType: ErrTypeInternal,
			want:    false,
		},
		{
			name:    "nil error",
			err:     nil,
			errType: ErrTypeNotFound,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsType(tt.err, tt.errType)
			if got != tt.want {
				t.Errorf("IsType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "app error", err: MissingRefreshTokenError(1), want: ErrTypeMissingRefreshToken},
		{name: "wrapped app error", err: fmt.Errorf("x: %w", BindError(":1", nil)), want: ErrTypeBind},
		{name: "regular error", err: errors.New("regular error"), want: ErrTypeInternal},
		{name: "nil error", err: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetType(tt.err)
			if got != tt.want {
				t.Errorf("GetType() = %v, want %v", got, tt.want)
			}
		})
	}
}
