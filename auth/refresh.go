package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const refreshKey = "refresh"

// ObtainFreshToken returns an access token to retry a request that was rejected
// while carrying attempted (empty when no token was sent).
//
// At most one exchange runs at a time. Callers arriving while one is in flight
// wait for its outcome instead of starting their own. A caller whose ctx ends
// stops waiting, but the shared attempt carries on for the others.
func (s *Service) ObtainFreshToken(ctx context.Context, attempted string) (string, error) {
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return s.reauthenticate(context.WithoutCancel(ctx), attempted)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Debug().Msg("Joined in-flight token refresh")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Service) reauthenticate(ctx context.Context, attempted string) (string, error) {
	// Another attempt already replaced the token this request was sent with.
	if current, ok := s.access.Read(); ok && current != attempted {
		log.Debug().Msg("Access token already refreshed; reusing it")
		return current, nil
	}

	s.access.Drop(ctx)

	if s.refresh == nil || s.exchanger == nil {
		s.Logout(ctx)
		return "", fmt.Errorf("%w: token refresh is not configured", ErrSignInRequired)
	}
	refreshToken, ok := s.refresh.Read()
	if !ok {
		s.Logout(ctx)
		return "", fmt.Errorf("%w: no refresh token", ErrSignInRequired)
	}

	log.Info().Msg("Access token rejected, refreshing...")
	tokens, err := s.exchanger.Exchange(ctx, s.hc, refreshToken)
	switch {
	case errors.Is(err, ErrDenied):
		s.Logout(ctx)
		return "", fmt.Errorf("%w: %w", ErrSignInRequired, err)
	case err != nil:
		log.Error().Err(err).Msg("Token refresh failed")
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	case tokens == nil || tokens.AccessToken == "":
		s.Logout(ctx)
		return "", fmt.Errorf("%w: refresh token was not accepted", ErrSignInRequired)
	}

	s.store(ctx, *tokens)
	log.Info().Msg("Token refreshed and saved successfully.")
	return tokens.AccessToken, nil
}
