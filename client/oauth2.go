package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/habedi/reauth/auth"
	"golang.org/x/oauth2"
)

// OAuth2Exchanger returns an exchanger that refreshes through conf's token endpoint.
func OAuth2Exchanger(conf *oauth2.Config) auth.Exchanger {
	return auth.ExchangeFunc(func(ctx context.Context, hc *http.Client, refreshToken string) (*auth.TokenPair, error) {
		if conf == nil {
			return nil, fmt.Errorf("oauth2 config is nil")
		}
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}

		// An expired token forces the source to hit the endpoint.
		stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
		tok, err := conf.TokenSource(ctx, stale).Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && retrieveDenied(re) || missingAccessToken(err) {
				return nil, fmt.Errorf("%w: %v", auth.ErrDenied, err)
			}
			return nil, fmt.Errorf("oauth2 token refresh failed: %w", err)
		}

		if tok.AccessToken == "" {
			return nil, fmt.Errorf("%w: token response has no access token", auth.ErrDenied)
		}
		pair := &auth.TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
		if !tok.Expiry.IsZero() {
			if d := time.Until(tok.Expiry); d > 0 {
				pair.AccessTokenExpiry = d
			}
		}
		return pair, nil
	})
}

func retrieveDenied(re *oauth2.RetrieveError) bool {
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	return isDenial(status, re.ErrorCode)
}

// missingAccessToken reports the plain error the oauth2 package returns for a
// 2xx token response without an access_token. TokenEndpoint counts the same
// answer as a denial.
func missingAccessToken(err error) bool {
	return strings.Contains(err.Error(), "missing access_token")
}
