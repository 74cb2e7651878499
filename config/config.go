// Package config loads environment variables and provides a typed Config used
// across the service. It applies sensible defaults so the binary can run
// locally with minimal setup. For required chat credentials, use
// ValidateChatReady.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string
	TwitchScopes       string

	// Canvas
	CanvasPath   string
	CanvasWidth  uint32
	CanvasHeight uint32
	// ScratchDir holds temp files before the atomic publish rename; empty
	// means the canvas file's own directory (same volume, rename stays atomic).
	ScratchDir string

	// Wall behavior
	AllowAlpha bool
	QueueSize  int

	// Database (optional; empty disables the pixel journal and token storage)
	DBDsn string
}

// Load reads environment variables and applies defaults. It doesn't fail if
// Twitch creds are missing; use ValidateChatReady() when you require the chat
// listener. An empty DB_DSN disables the optional Postgres-backed features.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	cfg.TwitchScopes = os.Getenv("TWITCH_SCOPES")
	if cfg.TwitchScopes == "" {
		// the wall only reads chat; it never sends
		cfg.TwitchScopes = "chat:read"
	}

	// Canvas
	cfg.CanvasPath = os.Getenv("CANVAS_PATH")
	if cfg.CanvasPath == "" {
		cfg.CanvasPath = "data/canvas.png"
	}
	w, err := envUint32("CANVAS_WIDTH", 128)
	if err != nil {
		return nil, err
	}
	h, err := envUint32("CANVAS_HEIGHT", 128)
	if err != nil {
		return nil, err
	}
	cfg.CanvasWidth, cfg.CanvasHeight = w, h
	cfg.ScratchDir = os.Getenv("CANVAS_SCRATCH_DIR")

	// Wall
	cfg.AllowAlpha = os.Getenv("WALL_ALLOW_ALPHA") != "0"
	cfg.QueueSize = 256
	if v := os.Getenv("WALL_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WALL_QUEUE_SIZE %q", v)
		}
		cfg.QueueSize = n
	}

	// DB (no default: the bot runs fine without Postgres)
	cfg.DBDsn = os.Getenv("DB_DSN")

	return cfg, nil
}

// ValidateChatReady checks required fields for the chat listener. A bot OAuth
// token may come either from the environment or from the oauth_tokens table,
// so a configured database stands in for TWITCH_OAUTH_TOKEN.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME")
	}
	if c.TwitchOAuthToken == "" && c.DBDsn == "" {
		return fmt.Errorf("no twitch token source: set TWITCH_OAUTH_TOKEN or DB_DSN for stored tokens")
	}
	return nil
}

func envUint32(key string, def uint32) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid %s %q: want positive integer", key, v)
	}
	return uint32(n), nil
}
