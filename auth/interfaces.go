package auth

import (
	"context"
	"net/http"
	"time"
)

// TokenPair is the result of a successful token exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// AccessTokenExpiry is how long the access token stays valid. Zero means no expiry hint.
	AccessTokenExpiry time.Duration
}

// Exchanger defines the contract for any component that can trade a refresh token
// for a new token pair.
//
// Returning (nil, nil) or an error wrapping ErrDenied means the refresh token was
// refused and the user has to sign in again. Any other error is treated as transient.
type Exchanger interface {
	Exchange(ctx context.Context, hc *http.Client, refreshToken string) (*TokenPair, error)
}

// ExchangeFunc adapts an ordinary function to the Exchanger interface.
type ExchangeFunc func(ctx context.Context, hc *http.Client, refreshToken string) (*TokenPair, error)

func (f ExchangeFunc) Exchange(ctx context.Context, hc *http.Client, refreshToken string) (*TokenPair, error) {
	return f(ctx, hc, refreshToken)
}

// LogoutHandler is called after every logout, once the token slots are cleared.
type LogoutHandler func()
