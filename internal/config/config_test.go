package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MIRROR_SOURCE_HANDLE", "alice")
	t.Setenv("MASTODON_SERVER", "https://masto.example")
	t.Setenv("MASTODON_ACCESS_TOKEN", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.SourceHandle != "alice" {
		t.Errorf("SourceHandle = %q", cfg.SourceHandle)
	}
	if cfg.FeedBaseURL != DefaultFeedBaseURL {
		t.Errorf("FeedBaseURL = %q, want default", cfg.FeedBaseURL)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %s, want %s", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.Lookback != DefaultLookback {
		t.Errorf("Lookback = %s, want %s", cfg.Lookback, DefaultLookback)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MIRROR_FEED_BASE_URL", "https://nitter.local")
	t.Setenv("MIRROR_POLL_INTERVAL", "2m")
	t.Setenv("MIRROR_LOOKBACK", "0")
	t.Setenv("MIRROR_DB_PATH", "/var/lib/feedmirror/ledger.db")
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.FeedBaseURL != "https://nitter.local" {
		t.Errorf("FeedBaseURL = %q", cfg.FeedBaseURL)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.Lookback != 0 {
		t.Errorf("Lookback = %s, want disabled", cfg.Lookback)
	}
	if cfg.DBPath != "/var/lib/feedmirror/ledger.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	keys := []string{"MIRROR_SOURCE_HANDLE", "MASTODON_SERVER", "MASTODON_ACCESS_TOKEN"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")
			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s is unset", key)
			}
		})
	}
}

func TestLoadInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("MIRROR_POLL_INTERVAL", "every now and then")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unparseable interval")
	}

	setRequired(t)
	t.Setenv("MIRROR_POLL_INTERVAL", "")
	t.Setenv("PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}

	t.Setenv("PORT", "")
	t.Setenv("MIRROR_LOOKBACK", "-1h")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative lookback")
	}
}
