package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/neoping-client/internal/config"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/jrsteele09/neoping-client/internal/fakebackend"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) *fakebackend.Backend {
	t.Helper()
	b := fakebackend.New()
	t.Cleanup(b.Close)
	b.AddUser("alice", "secret", map[string]any{"email": "alice@example.com"})

	t.Setenv("ENV", "TEST")
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("API_URL", b.URL())
	t.Setenv("TOKEN_STORE", config.StoreFile)
	t.Setenv("TOKEN_FILE", filepath.Join(t.TempDir(), "tokens.json"))
	t.Setenv("TOKEN_SECRET", "cli-test-secret")
	return b
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(append([]string{"-q"}, args...), &out)
	return out.String(), err
}

func TestCLISessionLifecycle(t *testing.T) {
	b := setupCLI(t)

	out, err := runCLI(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in.")

	out, err = runCLI(t, "login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as alice.")

	// A new process reads the persisted tokens.
	out, err = runCLI(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, `"username": "alice"`)
	require.Contains(t, out, "Access token has no expiry claim")
	require.NotContains(t, out, "refreshed at")

	out, err = runCLI(t, "get", "/posts")
	require.NoError(t, err)
	require.Contains(t, out, `"path": "/posts"`)
	require.Equal(t, []string{"Bearer T1"}, b.AuthHeaders("/posts"))

	out, err = runCLI(t, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out.")

	out, err = runCLI(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in.")
}

func TestCLIWhoamiReportsRefresh(t *testing.T) {
	b := setupCLI(t)

	_, err := runCLI(t, "login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)
	b.ExpireAccessTokens()

	out, err := runCLI(t, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, `"username": "alice"`)
	require.Contains(t, out, "Access token refreshed at")
	require.Equal(t, 1, b.Calls(config.RouteRefreshToken))
}

func TestCLIExpiredSession(t *testing.T) {
	b := setupCLI(t)

	_, err := runCLI(t, "login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)
	b.SetRejectAll(true)

	_, err = runCLI(t, "get", "/posts")
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestCLIHealth(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "health")
	require.NoError(t, err)
	require.Contains(t, out, "Backend healthy (status 200)")
}

func TestCLIErrors(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t)
	require.Error(t, err)

	_, err = runCLI(t, "frobnicate")
	require.ErrorContains(t, err, "unknown command")

	_, err = runCLI(t, "login", "-u", "alice")
	require.ErrorContains(t, err, "requires -u and -p")

	_, err = runCLI(t, "login", "-u", "alice", "-p", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}
