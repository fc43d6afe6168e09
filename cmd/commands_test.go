package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/habedi/reauth/pkg/clierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiServer issues a-1 for refresh token r-0 and serves /api only to holders of a-1.
type apiServer struct {
	exchanges atomic.Int32
	deny      bool
}

func (s *apiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/token":
		s.exchanges.Add(1)
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if s.deny || r.FormValue("refresh_token") != "r-0" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "a-1", "refresh_token": "r-1", "expires_in": 600})
	case "/api":
		if r.Header.Get("Authorization") != "Bearer a-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("hello world"))
	default:
		http.NotFound(w, r)
	}
}

func setupCLI(t *testing.T, tokenURL string) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("REAUTH_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("REAUTH_STATE_DIR", dir)
	t.Setenv("REAUTH_ACCESS_STORE", "file")
	t.Setenv("REAUTH_REFRESH_STORE", "file")
	t.Setenv("REAUTH_TOKEN_URL", tokenURL)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := createRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readSlot(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	var rec struct {
		Value string `json:"value"`
	}
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec.Value
}

func TestLoginStatusLogout(t *testing.T) {
	setupCLI(t, "")

	out, err := runCLI(t, "login", "--access-token", "access-token-1234", "--refresh-token", "refresh-token-5678", "--expires-in", "10m")
	require.NoError(t, err)
	assert.Contains(t, out, "Login was successful.")

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "acce****1234")
	assert.Contains(t, out, "refr****5678")
	assert.Contains(t, out, "Logged in: yes")
	assert.NotContains(t, out, "access-token-1234")

	_, err = runCLI(t, "logout")
	require.NoError(t, err)

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in: no")
}

func TestLogin_RequiresAccessTokenWithoutTerminal(t *testing.T) {
	setupCLI(t, "")

	_, err := runCLI(t, "login")

	require.Error(t, err)
	assert.Equal(t, 2, clierr.ExitCode(err))
}

func TestRequest_RefreshesOnUnauthorized(t *testing.T) {
	srv := &apiServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	dir := setupCLI(t, ts.URL+"/token")

	_, err := runCLI(t, "login", "-a", "a-0", "-r", "r-0")
	require.NoError(t, err)

	out, err := runCLI(t, "request", ts.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, int32(1), srv.exchanges.Load())
	assert.Equal(t, "a-1", readSlot(t, dir, "access"))
	assert.Equal(t, "r-1", readSlot(t, dir, "refresh"))

	out, err = runCLI(t, "request", ts.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, int32(1), srv.exchanges.Load(), "stored token is reused")
}

func TestRequest_SignInRequired(t *testing.T) {
	srv := &apiServer{deny: true}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	dir := setupCLI(t, ts.URL+"/token")

	_, err := runCLI(t, "login", "-a", "a-0", "-r", "r-0")
	require.NoError(t, err)

	_, err = runCLI(t, "request", ts.URL+"/api")

	require.Error(t, err)
	var ce *clierr.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, clierr.SignIn, ce.Type)
	assert.Equal(t, 3, clierr.ExitCode(err))
	assert.Empty(t, readSlot(t, dir, "access"))
	assert.Empty(t, readSlot(t, dir, "refresh"))
}

func TestRequest_RepeatSharesOneRefresh(t *testing.T) {
	srv := &apiServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	setupCLI(t, ts.URL+"/token")

	_, err := runCLI(t, "login", "-a", "a-0", "-r", "r-0")
	require.NoError(t, err)

	out, err := runCLI(t, "request", ts.URL+"/api", "--repeat", "6", "--concurrency", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 6 requests: 0 failed, 0 with an error status.")
	assert.Equal(t, int32(1), srv.exchanges.Load())
}

func TestRequest_SaveAndHash(t *testing.T) {
	srv := &apiServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	dir := setupCLI(t, ts.URL+"/token")

	_, err := runCLI(t, "login", "-a", "a-1")
	require.NoError(t, err)

	target := filepath.Join(dir, "out", "body.txt")
	out, err := runCLI(t, "request", ts.URL+"/api", "-o", target, "--hash", "sha256", "--rate-limit", "1048576")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.True(t, strings.HasPrefix(out, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"))
}

func TestRequest_FailFlag(t *testing.T) {
	srv := &apiServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	setupCLI(t, ts.URL+"/token")

	_, err := runCLI(t, "request", ts.URL+"/missing", "--fail")

	require.Error(t, err)
	assert.Equal(t, 4, clierr.ExitCode(err))
}

func TestRequest_Validation(t *testing.T) {
	setupCLI(t, "")

	tests := [][]string{
		{"request", "not-a-url"},
		{"request", "https://example.com", "-X", "FETCH"},
		{"request", "https://example.com", "-H", "broken"},
		{"request", "https://example.com", "--repeat", "0"},
		{"request", "https://example.com", "--repeat", "2", "-o", "x.bin"},
		{"request", "https://example.com", "--hash", "crc32"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args[1:], " "), func(t *testing.T) {
			_, err := runCLI(t, args...)
			require.Error(t, err)
			assert.Equal(t, 2, clierr.ExitCode(err))
		})
	}
}

func TestRequestOptions_DefaultMethod(t *testing.T) {
	o := &requestOptions{repeat: 1, concurrency: 1, timeout: 1}
	require.NoError(t, o.validate("https://example.com"))
	assert.Equal(t, http.MethodGet, o.method)

	o = &requestOptions{data: "{}", repeat: 1, concurrency: 1, timeout: 1}
	require.NoError(t, o.validate("https://example.com"))
	assert.Equal(t, http.MethodPost, o.method)
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
