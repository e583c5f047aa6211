// Package config handles application configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	DatabasePath     string  `env:"DATABASE_PATH, default=./data/playback.db"`
	LogLevel         string  `env:"LOG_LEVEL, default=info"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS"`

	Reader Reader `env:", prefix=READER_"`

	AppURL          string        `env:"APP_URL, default=https://feedplayback.example.com/"`
	AppName         string        `env:"APP_NAME, default=Feed Playback"`
	AdvanceInterval time.Duration `env:"ADVANCE_INTERVAL, default=24h"`
}

// Reader holds the static OAuth credentials and identity used against the
// reader service.
type Reader struct {
	ConsumerKey    string        `env:"CONSUMER_KEY, required"`
	ConsumerSecret string        `env:"CONSUMER_SECRET, required"`
	AccessToken    string        `env:"ACCESS_TOKEN, required"`
	AccessSecret   string        `env:"ACCESS_SECRET, required"`
	UserID         string        `env:"USER_ID, required"`
	BaseURL        string        `env:"BASE_URL, default=http://www.google.com/reader/api/0"`
	ClientName     string        `env:"CLIENT_NAME, default=feedplayback"`
	Timeout        time.Duration `env:"TIMEOUT, default=10s"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

// BotEnabled reports whether the Telegram operator bot should run.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}
