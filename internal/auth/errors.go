package auth

import "errors"

var (
	// ErrUnauthorized marks a request without credentials.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidToken marks a token that failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)
