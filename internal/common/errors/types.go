package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeNotFound represents a missing credential or token
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeBind represents a callback listener that could not bind its port
	ErrTypeBind ErrorType = "bind"
	// ErrTypeProvider represents a non-success or malformed provider response
	ErrTypeProvider ErrorType = "provider"
	// ErrTypeStateMismatch represents a callback whose state does not match the issued one
	ErrTypeStateMismatch ErrorType = "state_mismatch"
	// ErrTypeMissingRefreshToken represents a refresh attempt without a usable refresh token
	ErrTypeMissingRefreshToken ErrorType = "missing_refresh_token"
	// ErrTypePersistence represents a storage failure
	ErrTypePersistence ErrorType = "persistence"
	// ErrTypeNoCallback represents a hand-off channel closed without a callback
	ErrTypeNoCallback ErrorType = "no_callback"
	// ErrTypeValidation represents invalid caller input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// BindError creates a new listener bind error
func BindError(addr string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeBind,
		Message: fmt.Sprintf("failed to bind callback listener on %s", addr),
		Cause:   cause,
	}
}

// ProviderError creates a new provider error
func ProviderError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeProvider,
		Message: msg,
		Cause:   cause,
	}
}

// StateMismatchError creates a new CSRF state mismatch error
func StateMismatchError() *AppError {
	return &AppError{
		Type:    ErrTypeStateMismatch,
		Message: "callback state does not match the issued state",
	}
}

// MissingRefreshTokenError creates a new missing refresh token error
func MissingRefreshTokenError(credentialID int64) *AppError {
	return &AppError{
		Type:    ErrTypeMissingRefreshToken,
		Message: fmt.Sprintf("no usable refresh token for credential %d", credentialID),
	}
}

// PersistenceError creates a new persistence error
func PersistenceError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypePersistence,
		Message: msg,
		Cause:   cause,
	}
}

// NoCallbackError creates a new error for a hand-off that closed empty
func NoCallbackError() *AppError {
	return &AppError{
		Type:    ErrTypeNoCallback,
		Message: "callback listener exited without delivering a callback",
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// IsType checks if an error, or any error it wraps, is an AppError of a specific type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}
