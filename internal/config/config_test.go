package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, v := range []string{"API_URL", "REQUEST_TIMEOUT", "TOKEN_STORE", "ENV"} {
		t.Setenv(v, "")
	}
	c := config.New()

	require.Equal(t, "http://localhost:8082/api", c.GetBaseURL())
	require.Equal(t, 15*time.Second, c.GetRequestTimeout())
	require.Equal(t, config.StoreFile, c.GetTokenStore())
	require.Equal(t, "DEV", c.GetEnv())
	require.ElementsMatch(t, []string{"/auth/login", "/auth/signup", "/auth/refresh-token"}, c.GetExemptPaths())
	require.Equal(t, "application/json", c.GetDefaultHeaders()["Accept"])
}

func TestOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.neoping.dev/api/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("REFRESH_TIMEOUT", "not-a-duration")
	c := config.New()

	require.Equal(t, "https://api.neoping.dev/api", c.GetBaseURL())
	require.Equal(t, 3*time.Second, c.GetRequestTimeout())
	require.Equal(t, 10*time.Second, c.GetRefreshTimeout())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TOKEN_STORE=memory\n"), 0o600))

	t.Setenv("TOKEN_STORE", "")
	require.NoError(t, os.Unsetenv("TOKEN_STORE"))
	require.NoError(t, config.LoadDotEnv(envFile))
	require.Equal(t, config.StoreMemory, config.New().GetTokenStore())

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}
