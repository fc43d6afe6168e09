package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/habedi/reauth/cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Slot names used for logging and for the default storage keys.
const (
	AccessSlot  = "access"
	RefreshSlot = "refresh"
)

// Config holds the collaborators of a Service.
type Config struct {
	// AccessCache backs the access token slot. Nil means an in-memory cache.
	AccessCache cache.Cache
	// RefreshCache backs the refresh token slot. Nil means refresh is not supported.
	RefreshCache cache.Cache
	// RefreshTokenExpiry is the expiry hint used whenever a refresh token is stored.
	RefreshTokenExpiry time.Duration
	Exchanger          Exchanger
	LogoutHandler      LogoutHandler
	// HTTPClient is passed to the exchanger. It must not route through the
	// interceptor that depends on this Service.
	HTTPClient *http.Client
}

// Service owns the token slots and serialises reauthentication.
type Service struct {
	access  *cache.Mirror
	refresh *cache.Mirror

	refreshExpiry time.Duration
	exchanger     Exchanger
	onLogout      LogoutHandler
	hc            *http.Client

	group singleflight.Group
}

// NewService hydrates the configured slots and returns a ready Service.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	accessBacking := cfg.AccessCache
	if accessBacking == nil {
		accessBacking = cache.NewMemory("")
	}
	access, err := cache.NewMirror(ctx, AccessSlot, accessBacking)
	if err != nil {
		return nil, err
	}

	var refresh *cache.Mirror
	if cfg.RefreshCache != nil {
		refresh, err = cache.NewMirror(ctx, RefreshSlot, cfg.RefreshCache)
		if err != nil {
			return nil, err
		}
	}

	onLogout := cfg.LogoutHandler
	if onLogout == nil {
		onLogout = func() { log.Warn().Msg("Signed out; please login again") }
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Service{
		access:        access,
		refresh:       refresh,
		refreshExpiry: cfg.RefreshTokenExpiry,
		exchanger:     cfg.Exchanger,
		onLogout:      onLogout,
		hc:            hc,
	}, nil
}

// Login stores a token pair obtained outside the service, e.g. from a sign-in
// form. The pair replaces whatever was stored before: a pair without a
// refresh token clears the refresh slot.
func (s *Service) Login(ctx context.Context, tokens TokenPair) error {
	if tokens.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	s.store(ctx, tokens)
	if s.refresh != nil && tokens.RefreshToken == "" {
		s.refresh.Drop(ctx)
	}
	log.Info().Bool("refresh", s.refresh != nil && tokens.RefreshToken != "").Msg("Logged in")
	return nil
}

// Logout clears both slots and runs the logout handler. Calling it when
// already logged out is harmless; the handler still runs.
func (s *Service) Logout(ctx context.Context) {
	if s.refresh != nil {
		s.refresh.Drop(ctx)
	}
	s.access.Drop(ctx)
	s.onLogout()
}

// IsLoggedIn reports whether either slot holds a token.
func (s *Service) IsLoggedIn() bool {
	if _, ok := s.access.Read(); ok {
		return true
	}
	if s.refresh == nil {
		return false
	}
	_, ok := s.refresh.Read()
	return ok
}

// AccessToken returns the current access token.
func (s *Service) AccessToken() (string, bool) {
	return s.access.Read()
}

// RefreshToken returns the current refresh token. It is absent when the
// service has no refresh slot.
func (s *Service) RefreshToken() (string, bool) {
	if s.refresh == nil {
		return "", false
	}
	return s.refresh.Read()
}

// SupportsRefresh reports whether a refresh slot was configured.
func (s *Service) SupportsRefresh() bool { return s.refresh != nil }

// store writes a token pair. An empty refresh token leaves the refresh slot
// untouched, which is what a non-rotating exchange needs.
func (s *Service) store(ctx context.Context, tokens TokenPair) {
	s.access.Write(ctx, tokens.AccessToken, tokens.AccessTokenExpiry)
	if s.refresh != nil && tokens.RefreshToken != "" {
		s.refresh.Write(ctx, tokens.RefreshToken, s.refreshExpiry)
	}
}
