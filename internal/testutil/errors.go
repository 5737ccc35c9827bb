package testutil

import "errors"

// Common test errors
var (
	ErrDatabaseLocked = errors.New("database is locked")
	ErrTestFailure    = errors.New("test failure")
)
