// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., the Twitch IRC source), use ValidateTwitchReady.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// Chat source selection: "bilibili" (history polling, default) or "twitch" (IRC).
	ChatSource string

	// Bilibili
	RoomID string

	// Twitch (IRC source only)
	TwitchChannel     string
	TwitchBotUsername string
	TwitchOAuthToken  string

	// Command dispatch
	Prefix              string
	AdminUsers          []string
	BannedUsers         []string
	BlacklistedCommands []string

	// Poller tuning
	PollInterval time.Duration
	StaleAfter   time.Duration

	// Storage (alias table, cooldown config, help listing)
	DataDir string
}

// Load reads environment variables and applies defaults. It doesn't fail if chat creds
// are missing; use ValidateRoomReady/ValidateTwitchReady when a source is started.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ChatSource = strings.ToLower(os.Getenv("CHAT_SOURCE"))
	if cfg.ChatSource == "" {
		cfg.ChatSource = "bilibili"
	}
	switch cfg.ChatSource {
	case "bilibili", "twitch":
	default:
		return nil, fmt.Errorf("invalid CHAT_SOURCE %q (want bilibili or twitch)", cfg.ChatSource)
	}

	cfg.RoomID = os.Getenv("BILI_ROOM_ID")

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	cfg.Prefix = os.Getenv("COMMAND_PREFIX")
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}

	cfg.AdminUsers = splitList(os.Getenv("ADMIN_USERS"))
	cfg.BannedUsers = splitList(os.Getenv("BANNED_USERS"))
	cfg.BlacklistedCommands = splitList(os.Getenv("BLACKLISTED_COMMANDS"))

	cfg.PollInterval = time.Second
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", v)
		}
		cfg.PollInterval = d
	}

	cfg.StaleAfter = 30 * time.Second
	if v := os.Getenv("STALE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid STALE_AFTER %q", v)
		}
		cfg.StaleAfter = d
	}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	return cfg, nil
}

// ValidateRoomReady checks required fields for the Bilibili polling source.
func (c *Config) ValidateRoomReady() error {
	if c.RoomID == "" {
		return fmt.Errorf("missing bilibili env: require BILI_ROOM_ID")
	}
	return nil
}

// ValidateTwitchReady checks required fields when the Twitch IRC source is selected.
func (c *Config) ValidateTwitchReady() error {
	if c.TwitchChannel == "" || c.TwitchBotUsername == "" || c.TwitchOAuthToken == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
	}
	return nil
}

// AliasPath is the location of the user-editable alias translation file.
func (c *Config) AliasPath() string { return filepath.Join(c.DataDir, "localization.txt") }

// CooldownPath is the location of the cooldown override file.
func (c *Config) CooldownPath() string { return filepath.Join(c.DataDir, "cooldowns.yaml") }

// HelpPath is where the generated command listing is written.
func (c *Config) HelpPath() string { return filepath.Join(c.DataDir, "command-list.txt") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
