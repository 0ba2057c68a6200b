package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the optional settings.
const (
	DefaultFeedBaseURL  = "https://nitter.net"
	DefaultPollInterval = 30 * time.Second
	DefaultLookback     = 24 * time.Hour
	DefaultDBPath       = "feedmirror.db"
	DefaultPort         = 3000
)

// Config holds all configuration for the application.
type Config struct {
	// SourceHandle is the handle of the public account to mirror.
	SourceHandle string

	// FeedBaseURL is the host serving the account's RSS feed.
	FeedBaseURL string

	// MastodonServer is the destination instance URL.
	MastodonServer string

	// MastodonAccessToken authenticates against the destination instance.
	MastodonAccessToken string

	// PollInterval is the base delay between poll ticks.
	PollInterval time.Duration

	// Lookback discards source posts older than this window; zero disables
	// the window and mirrors the entire recent page.
	Lookback time.Duration

	// DBPath is the ledger database file.
	DBPath string

	// Port is the ops HTTP server port.
	Port int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	handle := os.Getenv("MIRROR_SOURCE_HANDLE")
	if handle == "" {
		return nil, fmt.Errorf("MIRROR_SOURCE_HANDLE is required")
	}

	server := os.Getenv("MASTODON_SERVER")
	if server == "" {
		return nil, fmt.Errorf("MASTODON_SERVER is required")
	}

	token := os.Getenv("MASTODON_ACCESS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("MASTODON_ACCESS_TOKEN is required")
	}

	feedBaseURL := os.Getenv("MIRROR_FEED_BASE_URL")
	if feedBaseURL == "" {
		feedBaseURL = DefaultFeedBaseURL
	}

	interval, err := durationEnv("MIRROR_POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("MIRROR_POLL_INTERVAL must be positive")
	}

	lookback, err := durationEnv("MIRROR_LOOKBACK", DefaultLookback)
	if err != nil {
		return nil, err
	}
	if lookback < 0 {
		return nil, fmt.Errorf("MIRROR_LOOKBACK must not be negative")
	}

	dbPath := os.Getenv("MIRROR_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	port := DefaultPort
	if p := os.Getenv("PORT"); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	return &Config{
		SourceHandle:        handle,
		FeedBaseURL:         feedBaseURL,
		MastodonServer:      server,
		MastodonAccessToken: token,
		PollInterval:        interval,
		Lookback:            lookback,
		DBPath:              dbPath,
		Port:                port,
	}, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
