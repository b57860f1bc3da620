package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 720*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10*time.Second, cfg.RateLimitUpload)
	assert.Equal(t, "media_gallery", cfg.CloudinaryUploadFolder)
	assert.False(t, cfg.AutoVerifyUsers)
	assert.Equal(t, "@every 1h", cfg.StaleUploadSchedule)
	assert.Equal(t, 24*time.Hour, cfg.StaleUploadAge)
}

func TestLoad_AdminUsernames(t *testing.T) {
	t.Setenv("ADMIN_USERNAMES", "root,mod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAdmin("mod"))
	assert.False(t, cfg.IsAdmin("guest"))
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("RATE_LIMIT_UPLOAD", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.Error(t, err)
}
