package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal("127.0.0.1:8743", cfg.ListenAddr)
	assert.Equal("crosspost.db", cfg.DatabasePath)
	assert.Equal("https://bsky.social", cfg.BlueskyPDS)
	assert.Equal(5*time.Minute, cfg.SendTimeout)
	assert.Equal(921600, cfg.ImageMaxBytes)
	assert.Equal(2000, cfg.ImageMaxDimension)
	assert.Equal("surface", cfg.AutomationMode)
	assert.Equal(slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFromEnvironment(t *testing.T) {
	assert := assert.New(t)

	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("BLUESKY_HANDLE", "user.bsky.social")
	t.Setenv("SEND_TIMEOUT", "90s")
	t.Setenv("AUTOMATION_MODE", "browser")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal("127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal("user.bsky.social", cfg.BlueskyHandle)
	assert.Equal(90*time.Second, cfg.SendTimeout)
	assert.Equal("browser", cfg.AutomationMode)
	assert.Equal(slog.LevelDebug, cfg.SlogLevel())
}

func TestSlogLevelUnknownFallsBack(t *testing.T) {
	assert := assert.New(t)

	cfg := &Config{LogLevel: "loud"}
	assert.Equal(slog.LevelInfo, cfg.SlogLevel())
}
