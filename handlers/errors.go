package handlers

import "errors"

var (
	ErrInvalidFields        = errors.New("invalid-fields")
	ErrRateLimited          = errors.New("rate-limited")
	ErrLinkInvalidOrExpired = errors.New("link-invalid-or-expired")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrUnavailable          = errors.New("unavailable")
)
