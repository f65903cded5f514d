package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-anon-client/internal/config"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{"ENV", "API_BASE_URL", "REQUEST_TIMEOUT", "REQUESTS_PER_SECOND", "LOGIN_URL", "CLEAR_SESSION_ON_UNREACHABLE", "FOLDER"} {
		t.Setenv(key, "")
	}
	c := config.New()

	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8000", c.GetAPIBaseURL())
	require.Equal(t, 15*time.Second, c.GetRequestTimeout())
	require.Equal(t, 10, c.GetRequestsPerSecond())
	require.Equal(t, "/login", c.GetLoginURL())
	require.Equal(t, 10*time.Second, c.GetRefreshSkew())
	require.False(t, c.GetClearSessionOnUnreachable())
	require.Equal(t, filepath.Join("./data", "session.json"), config.DataPath(c, c.GetSessionFile()))
}

func TestOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("REQUESTS_PER_SECOND", "0")
	t.Setenv("CLEAR_SESSION_ON_UNREACHABLE", "true")
	t.Setenv("FOLDER", "/tmp/anon")
	c := config.New()

	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, 3*time.Second, c.GetRequestTimeout())
	require.Equal(t, 0, c.GetRequestsPerSecond())
	require.True(t, c.GetClearSessionOnUnreachable())
	require.Equal(t, "/tmp/anon/cookies.json", config.DataPath(c, c.GetCookieFile()))
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TEST_DURATION", "soon")
	t.Setenv("TEST_INT", "ten")
	t.Setenv("TEST_BOOL", "maybe")

	require.Equal(t, time.Minute, config.GetEnvDuration("TEST_DURATION", time.Minute))
	require.Equal(t, 7, config.GetEnvInt("TEST_INT", 7))
	require.True(t, config.GetEnvBool("TEST_BOOL", true))
}
