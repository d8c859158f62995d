package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "http://localhost:3001", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.IDsTimeout)
	assert.Equal(t, ViewStoreMemory, cfg.Views.Store)
	assert.Equal(t, 100, cfg.Views.DefaultPageSize)
	assert.Equal(t, 5*time.Minute, cfg.Views.ActionTimeout)
	assert.Equal(t, "Data Siswa", cfg.Export.SheetName)
	assert.False(t, cfg.JWT.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BACKEND_BASE_URL", "http://backend:3001/")
	t.Setenv("VIEW_STORE", "REDIS")
	t.Setenv("VIEW_PAGE_SIZE", "9999")
	t.Setenv("VIEW_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:3001", cfg.Backend.BaseURL)
	assert.Equal(t, ViewStoreRedis, cfg.Views.Store)
	assert.Equal(t, 100, cfg.Views.DefaultPageSize)
	assert.Equal(t, 2*time.Hour, cfg.Views.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
