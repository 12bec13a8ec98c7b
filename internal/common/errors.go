// Package common defines shared constants and sentinel errors used across
// the drivelink server layers. Callers should use errors.Is to match these
// values; services wrap them with %w to add context.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound  = errors.New("not found")
	ErrorDuplicate = errors.New("duplicate")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrMissingIdentity  = errors.New("missing user identity")
	ErrMissingParameter = errors.New("missing required parameter")
	ErrInvalidState     = errors.New("state does not identify a user")

	// Lookup errors.
	ErrUserNotFound   = errors.New("user not found")
	ErrNoRefreshToken = errors.New("no refresh token available")

	// Conflict errors.
	ErrAlreadyLinked     = errors.New("account already linked")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Provider errors.
	ErrExchangeFailed   = errors.New("authorization code exchange failed")
	ErrEmailUnavailable = errors.New("provider did not return an account email")
	ErrRefreshFailed    = errors.New("access token refresh failed")
	ErrAlreadyRevoked   = errors.New("token already revoked")
	ErrUpstream         = errors.New("provider request failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidPassword = errors.New("invalid password")
)
