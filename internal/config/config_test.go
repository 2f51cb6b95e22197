package config

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"PORT", "GIN_MODE", "SESSION_SECRET", "SCROLLFORGE_API_URL", "API_TIMEOUT_SECONDS",
		"UPLOAD_TIMEOUT_SECONDS", "PAGE_LOAD_TIMEOUT_SECONDS", "STORAGE_BACKEND", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 10*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout)
	assert.Equal(t, StorageCookie, cfg.StorageBackend)
	assert.Equal(t, DevSessionSecret, cfg.SessionSecret)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins())
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_TIMEOUT_SECONDS", "4")
	t.Setenv("UPLOAD_TIMEOUT_SECONDS", "")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.APITimeout)
	assert.Equal(t, 4*time.Second, cfg.UploadTimeout, "upload timeout follows the API timeout")
	assert.Equal(t, StorageRedis, cfg.StorageBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			GinMode:         "debug",
			SessionSecret:   DevSessionSecret,
			APIBaseURL:      "http://localhost:8000",
			APITimeout:      time.Second,
			LoadTimeout:     time.Second,
			StorageBackend:  StorageCookie,
			StorageRedisURL: "redis://127.0.0.1:6379/0",
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.GinMode = "release"
	assert.Error(t, cfg.Validate(), "dev secret is refused in release mode")
	cfg.SessionSecret = "real-secret"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.StorageBackend = "memcached"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StorageBackend = StorageRedis
	cfg.StorageRedisURL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.APITimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.TraceLevel, ParseLogLevel("trace"))

	logger := (&Config{LogLevel: "error"}).NewLogger(io.Discard)
	assert.Equal(t, logrus.ErrorLevel, logger.GetLevel())
}
