package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("ENV", " Production ")
	t.Setenv("PORT", "8123")
	t.Setenv("LOG_MODE", "production")
	t.Setenv("PRODUCTION_API_ENDPOINT", "https://proxy.example.com/")

	e, err := ParseEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvironmentProduction, e.Environment)
	assert.Equal(t, 8123, e.Port)

	base, err := e.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.example.com", base)
}

func TestEnvBaseURL(t *testing.T) {
	t.Run("development default", func(t *testing.T) {
		e := Env{Environment: EnvironmentDevelopment, DevelopmentEndpoint: "http://127.0.0.1:8000"}
		base, err := e.BaseURL()
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8000", base)
	})

	t.Run("unknown environment", func(t *testing.T) {
		_, err := Env{Environment: "staging"}.BaseURL()
		require.Error(t, err)
		assert.Equal(t, "invalid environment: staging", err.Error())
	})

	t.Run("production without endpoint", func(t *testing.T) {
		_, err := Env{Environment: EnvironmentProduction}.BaseURL()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no api endpoint configured")
	})
}

func TestEnvApply(t *testing.T) {
	cfg := Default()
	require.NoError(t, Env{Port: 9001, LogMode: "PRODUCTION"}.Apply(&cfg))
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, LogModeProduction, cfg.Log.Mode)

	cfg = Default()
	err := Env{LogMode: "loud"}.Apply(&cfg)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHATPROXY_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHATPROXY_TEST_VALUE") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv("CHATPROXY_TEST_VALUE"))
}
