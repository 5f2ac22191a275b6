// Package common defines shared constants and sentinel errors used across
// the gateway layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")

	// Session errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = fmt.Errorf("%w: token expired", ErrInvalidToken)

	// Storage resolution errors.
	ErrNeedsSetup = errors.New("storage credentials required")
	ErrDirectory  = errors.New("user directory error")

	// Object store errors.
	ErrUpstreamStorage    = errors.New("upstream storage error")
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")

	// Album registry errors.
	ErrMalformedMetadata = errors.New("malformed metadata")
	ErrRegistryConflict  = errors.New("registry update conflict")
)
