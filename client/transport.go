// Package client provides the HTTP side of reauth: a RoundTripper that
// authenticates outgoing requests and recovers from 401 responses, and the
// exchangers that trade a refresh token for a new token pair.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TokenSource is what the Transport needs from the auth service.
type TokenSource interface {
	AccessToken() (string, bool)
	ObtainFreshToken(ctx context.Context, attempted string) (string, error)
}

// Transport attaches the current access token to each request. When the
// server answers 401 it asks Auth for a fresh token and resubmits the request
// once. Errors from the refresh are returned as the round trip error.
type Transport struct {
	Base http.RoundTripper
	Auth TokenSource
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Auth == nil {
		closeRequestBody(req)
		return nil, fmt.Errorf("reauth transport has no token source")
	}

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	first, err := withBody(req, getBody)
	if err != nil {
		return nil, err
	}
	if token, ok := t.Auth.AccessToken(); ok {
		setBearer(first, token)
	}
	sent := bearerFrom(first.Header.Get("Authorization"))

	resp, err := t.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	log.Debug().Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("Request unauthorized, obtaining fresh token")
	fresh, err := t.Auth.ObtainFreshToken(req.Context(), sent)
	closeResponseBody(resp)
	if err != nil {
		return nil, err
	}

	retry, err := withBody(req, getBody)
	if err != nil {
		return nil, err
	}
	setBearer(retry, fresh)
	return t.base().RoundTrip(retry)
}

// withBody clones req, giving the clone its own copy of the body.
func withBody(req *http.Request, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	out := req.Clone(req.Context())
	if getBody == nil {
		return out, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	out.Body = body
	out.GetBody = getBody
	return out, nil
}

// replayableBody returns a function producing fresh copies of the request
// body, buffering it once when the request does not already provide one.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		// Only copies from GetBody are sent, so the original is done with.
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// bearerFrom extracts the token from an Authorization header value.
func bearerFrom(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// Install wraps the transport of hc with a Transport backed by src and returns hc.
func Install(hc *http.Client, src TokenSource) *http.Client {
	if _, ok := hc.Transport.(*Transport); ok {
		log.Debug().Msg("Interceptor already installed")
		return hc
	}
	hc.Transport = &Transport{Base: hc.Transport, Auth: src}
	return hc
}

// Option configures a client built by New.
type Option func(*http.Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(hc *http.Client) { hc.Timeout = d }
}

// WithBase sets the transport the interceptor sends through.
func WithBase(rt http.RoundTripper) Option {
	return func(hc *http.Client) { hc.Transport = rt }
}

// New returns a client with the interceptor installed.
func New(src TokenSource, opts ...Option) *http.Client {
	hc := &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(hc)
	}
	return Install(hc, src)
}
