package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habedi/reauth/auth"
	"github.com/rs/zerolog/log"
)

const defaultMaxRetries = 3

// TokenEndpoint exchanges refresh tokens by posting a refresh_token grant to
// an OAuth2 style token URL.
type TokenEndpoint struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// MaxRetries bounds attempts on network errors and 5xx responses. Zero means 3.
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles each time. Zero means 1s.
	Backoff time.Duration
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange implements auth.Exchanger.
func (e *TokenEndpoint) Exchange(ctx context.Context, hc *http.Client, refreshToken string) (*auth.TokenPair, error) {
	if e.TokenURL == "" {
		return nil, fmt.Errorf("token URL is not configured")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if e.ClientID != "" {
		form.Set("client_id", e.ClientID)
	}
	if e.ClientSecret != "" {
		form.Set("client_secret", e.ClientSecret)
	}

	resp, err := e.post(ctx, hc, form.Encode())
	if err != nil {
		return nil, err
	}
	defer closeResponseBody(resp)

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read token refresh response: %w", err)
	}

	var result tokenResponse
	parseErr := json.Unmarshal(body, &result)

	if resp.StatusCode >= 400 || result.Error != "" {
		msg := strings.TrimSpace(result.ErrorDescription)
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if isDenial(resp.StatusCode, result.Error) {
			return nil, fmt.Errorf("%w: %s (status %d)", auth.ErrDenied, msg, resp.StatusCode)
		}
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, msg)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse token refresh response: %w", parseErr)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carried no access token", auth.ErrDenied)
	}

	newRefresh := result.RefreshToken
	if newRefresh == "" {
		// Server did not rotate the refresh token.
		newRefresh = refreshToken
	}
	return &auth.TokenPair{
		AccessToken:       result.AccessToken,
		RefreshToken:      newRefresh,
		AccessTokenExpiry: time.Duration(result.ExpiresIn) * time.Second,
	}, nil
}

// post sends the form, retrying network errors and server errors with a doubling backoff.
func (e *TokenEndpoint) post(ctx context.Context, hc *http.Client, form string) (*http.Response, error) {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := e.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var resp *http.Response
	var err error
	for i := 0; i < maxRetries; i++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form))
		if err != nil {
			return nil, fmt.Errorf("failed to create token refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err = hc.Do(req)
		switch {
		case err != nil:
			log.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Token request failed, retrying...")
		case resp.StatusCode >= 500:
			log.Warn().Int("status", resp.StatusCode).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Server error, retrying...")
			if i == maxRetries-1 {
				return resp, nil
			}
			closeResponseBody(resp)
		default:
			return resp, nil
		}

		if i == maxRetries-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	log.Error().Err(err).Msg("Token request failed after multiple retries")
	return nil, fmt.Errorf("failed to post form for token refresh: %w", err)
}

// isDenial reports whether a token endpoint answer means the refresh token is no good.
func isDenial(status int, code string) bool {
	switch code {
	case "invalid_grant", "invalid_token", "unauthorized_client":
		return true
	}
	return status == http.StatusBadRequest || status == http.StatusUnauthorized
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

func closeResponseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 1024*1024)
	_ = resp.Body.Close()
}
