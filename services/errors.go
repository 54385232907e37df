package services

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited = errors.New("rate-limited")

	// ErrTokenInvalid covers not-found, expired, consumed and superseded
	// uniformly; the distinction lives in security event metadata only.
	ErrTokenInvalid = errors.New("token-invalid")

	// ErrLinkInvalidOrExpired is how ErrTokenInvalid surfaces from the magic
	// link flow.
	ErrLinkInvalidOrExpired = fmt.Errorf("link-invalid-or-expired: %w", ErrTokenInvalid)

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnavailable     = errors.New("unavailable")
)
