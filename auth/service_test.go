package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/reauth/auth"
	"github.com/habedi/reauth/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExchanger struct {
	calls   atomic.Int32
	tokens  *auth.TokenPair
	err     error
	started chan struct{}
	release chan struct{}
	gotCtx  context.Context
	gotRT   string
}

func (m *mockExchanger) Exchange(ctx context.Context, _ *http.Client, refreshToken string) (*auth.TokenPair, error) {
	m.calls.Add(1)
	m.gotCtx = ctx
	m.gotRT = refreshToken
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	return m.tokens, m.err
}

// recordingCache remembers the expiry passed to the last write.
type recordingCache struct {
	*cache.Memory
	mu         sync.Mutex
	lastExpiry time.Duration
}

func (r *recordingCache) Write(ctx context.Context, value string, expiry time.Duration) error {
	r.mu.Lock()
	r.lastExpiry = expiry
	r.mu.Unlock()
	return r.Memory.Write(ctx, value, expiry)
}

type logoutCounter struct{ n atomic.Int32 }

func (c *logoutCounter) handler() { c.n.Add(1) }

func newService(t *testing.T, cfg auth.Config) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(context.Background(), cfg)
	require.NoError(t, err)
	return svc
}

func TestLogin_RoundTrip(t *testing.T) {
	refresh := &recordingCache{Memory: cache.NewMemory("")}
	svc := newService(t, auth.Config{RefreshCache: refresh, RefreshTokenExpiry: 24 * time.Hour})

	assert.False(t, svc.IsLoggedIn())
	require.NoError(t, svc.Login(context.Background(), auth.TokenPair{
		AccessToken: "a1", RefreshToken: "r1", AccessTokenExpiry: 600 * time.Second,
	}))

	assert.True(t, svc.IsLoggedIn())
	tok, ok := svc.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "a1", tok)
	rt, ok := svc.RefreshToken()
	assert.True(t, ok)
	assert.Equal(t, "r1", rt)
	assert.Equal(t, 24*time.Hour, refresh.lastExpiry, "refresh token uses the configured expiry")
}

func TestLogin_RequiresAccessToken(t *testing.T) {
	svc := newService(t, auth.Config{})
	err := svc.Login(context.Background(), auth.TokenPair{RefreshToken: "r1"})
	assert.Error(t, err)
	assert.False(t, svc.IsLoggedIn())
}

func TestLogin_WithoutRefreshSlot(t *testing.T) {
	svc := newService(t, auth.Config{})
	require.NoError(t, svc.Login(context.Background(), auth.TokenPair{AccessToken: "a1", RefreshToken: "r1"}))

	_, ok := svc.RefreshToken()
	assert.False(t, ok)
	assert.False(t, svc.SupportsRefresh())
}

func TestLogin_ReplacesPreviousRefreshToken(t *testing.T) {
	backing := cache.NewMemory("")
	ex := &mockExchanger{tokens: &auth.TokenPair{AccessToken: "minted"}}
	svc := newService(t, auth.Config{RefreshCache: backing, Exchanger: ex})
	ctx := context.Background()

	require.NoError(t, svc.Login(ctx, auth.TokenPair{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, svc.Login(ctx, auth.TokenPair{AccessToken: "a2"}))

	_, ok := svc.RefreshToken()
	assert.False(t, ok, "second login carried no refresh token")
	_, ok, err := backing.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "backing slot was cleared too")

	_, err = svc.ObtainFreshToken(ctx, "a2")
	assert.ErrorIs(t, err, auth.ErrSignInRequired)
	assert.Zero(t, ex.calls.Load(), "the old session's refresh token must not be exchanged")
}

func TestLogout_IsIdempotent(t *testing.T) {
	var counter logoutCounter
	svc := newService(t, auth.Config{
		AccessCache:   cache.NewMemory("a1"),
		RefreshCache:  cache.NewMemory("r1"),
		LogoutHandler: counter.handler,
	})
	ctx := context.Background()

	svc.Logout(ctx)
	assert.False(t, svc.IsLoggedIn())
	svc.Logout(ctx)
	assert.False(t, svc.IsLoggedIn())
	assert.Equal(t, int32(2), counter.n.Load(), "handler runs on every logout")
}

func TestIsLoggedIn_RefreshTokenOnly(t *testing.T) {
	svc := newService(t, auth.Config{RefreshCache: cache.NewMemory("r-0")})
	assert.True(t, svc.IsLoggedIn())
}

func TestNewService_HydrateFailure(t *testing.T) {
	_, err := auth.NewService(context.Background(), auth.Config{RefreshCache: failingCache{}})
	assert.Error(t, err)
}

type failingCache struct{}

func (failingCache) Read(context.Context) (string, bool, error) { return "", false, errors.New("boom") }
func (failingCache) Write(context.Context, string, time.Duration) error {
	return errors.New("boom")
}
func (failingCache) Drop(context.Context) error { return errors.New("boom") }
