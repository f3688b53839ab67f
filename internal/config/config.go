package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the agent, read from environment
// variables.
type Config struct {
	// ListenAddr is the address the editing-surface bus listens on. Local by
	// default; the surface runs on the same machine.
	ListenAddr string `env:"LISTEN_ADDR,default=127.0.0.1:8743"`

	// DatabasePath is the sqlite file holding preferences and the durable
	// delivery backup.
	DatabasePath string `env:"DATABASE_PATH,default=crosspost.db"`

	// BlueskyPDS is the PDS service URL.
	BlueskyPDS string `env:"BLUESKY_PDS,default=https://bsky.social"`

	// BlueskyHandle and BlueskyAppPassword seed the preference store on first
	// run. Use an App Password, not the account password.
	BlueskyHandle      string `env:"BLUESKY_HANDLE"`
	BlueskyAppPassword string `env:"BLUESKY_APP_PASSWORD"`

	// SendTimeout is the watchdog window after which a destination still
	// mid-send is forced to a timeout error.
	SendTimeout time.Duration `env:"SEND_TIMEOUT,default=5m"`

	// ImageMaxBytes is the encoded byte budget per uploaded image.
	ImageMaxBytes int `env:"IMAGE_MAX_BYTES,default=921600"`

	// ImageMaxDimension caps an uploaded image's longest side.
	ImageMaxDimension int `env:"IMAGE_MAX_DIMENSION,default=2000"`

	// AutomationMode selects how the UI-automation destination is triggered:
	// "surface" asks the connected editing surface to click its own submit
	// button; "browser" drives the browser directly over DevTools.
	AutomationMode string `env:"AUTOMATION_MODE,default=surface"`

	// BrowserURL is the DevTools websocket URL of the user's running browser,
	// used in "browser" mode. Empty means the trigger launches its own
	// instance.
	BrowserURL string `env:"BROWSER_DEVTOOLS_URL"`

	// Headless controls the launched browser when BrowserURL is empty.
	Headless bool `env:"AUTOMATION_HEADLESS,default=false"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
