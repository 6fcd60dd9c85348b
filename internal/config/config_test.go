package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "static", cfg.StaticDir)
	assert.Equal(t, Duration(30*time.Second), cfg.Upstream.Timeout)
	assert.Equal(t, 2, cfg.Upstream.Retries)
	assert.True(t, cfg.IsDev())
}

func TestLoadParsesDurationString(t *testing.T) {
	path := writeConfig(t, "upstream:\n  base_url: http://example.com/api\n  timeout: 45s\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Upstream.Timeout.Std())
}

func TestLoadParsesDurationNanoseconds(t *testing.T) {
	path := writeConfig(t, "upstream:\n  timeout: 1500000000\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Upstream.Timeout.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "upstream:\n  timeout: soon\n"))
	require.Error(t, err)
}

func TestLoadZeroTimeoutFallsBack(t *testing.T) {
	cfg, err := Load(writeConfig(t, "upstream:\n  timeout: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, Duration(30*time.Second), cfg.Upstream.Timeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "port: 9000\nenv: production\n")
	t.Setenv("PORT", "7070")
	t.Setenv("JWT_SECRET", "shhh")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "shhh", cfg.JWTSecret)
	assert.False(t, cfg.IsDev())
}
