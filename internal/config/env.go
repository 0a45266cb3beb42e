package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into
// the process environment. Missing files are ignored; variables already set
// in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on top of the YAML config.
// getenv is os.Getenv outside of tests.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	// The same mailbox sends and receives unless email.to is configured.
	if v := strings.TrimSpace(getenv("SCRAPER_EMAIL")); v != "" {
		cfg.Email.From = v
		if cfg.Email.To == "" {
			cfg.Email.To = v
		}
	}
	if v := getenv("SCRAPER_PASS"); v != "" {
		cfg.Email.Password = v
	}

	if v := strings.TrimSpace(getenv("SCRAPER_INTERVAL_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("SCRAPER_INTERVAL_SECONDS must be a positive integer, got %q", v)
		}
		cfg.Polling.IntervalSeconds = n
	}

	if v := strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.Telegram.ChatID = id
	}

	if v := strings.TrimSpace(getenv("JOBWATCH_REDIS_ADDR")); v != "" {
		cfg.Seen.RedisAddr = v
	}
	return nil
}
