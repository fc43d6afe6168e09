package auth

import "errors"

var (
	// ErrSignInRequired is returned when a rejected request cannot be recovered
	// without the user signing in again.
	ErrSignInRequired = errors.New("sign-in required")

	// ErrDenied is returned by exchangers when the token endpoint refuses the refresh token.
	ErrDenied = errors.New("refresh token denied")
)
