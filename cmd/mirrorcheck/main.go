// Command mirrorcheck is a one-shot preflight for a feedmirror deployment: it
// validates the configuration, checks destination credentials, fetches the
// source feed once, and reports what the first poll tick would mirror. It
// publishes nothing and writes nothing to the ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mpruett/feedmirror/internal/config"
	"github.com/mpruett/feedmirror/internal/mastodon"
	"github.com/mpruett/feedmirror/internal/nitter"
	"github.com/mpruett/feedmirror/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var skipVerify bool
	flag.BoolVar(&skipVerify, "skip-verify", false, "Skip the Mastodon credential check")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ledger, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	count, err := ledger.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ledger %s: %d posts mirrored so far\n", cfg.DBPath, count)

	if !skipVerify {
		client, err := mastodon.NewClient(cfg.MastodonServer, cfg.MastodonAccessToken)
		if err != nil {
			return err
		}
		fmt.Printf("Verifying credentials against %s...\n", cfg.MastodonServer)
		if err := client.VerifyCredentials(ctx); err != nil {
			return err
		}
		fmt.Println("Credentials OK")
	}

	reader, err := nitter.NewReader(cfg.FeedBaseURL, cfg.SourceHandle)
	if err != nil {
		return err
	}

	fmt.Printf("Fetching recent posts for @%s...\n", cfg.SourceHandle)
	posts, err := reader.FetchRecent(ctx)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Println("Feed is reachable but has no mirrorable posts")
		return nil
	}

	var cutoff time.Time
	if cfg.Lookback > 0 {
		cutoff = time.Now().Add(-cfg.Lookback)
	}

	pending := 0
	for _, post := range posts {
		if !cutoff.IsZero() && post.CreatedAt.Before(cutoff) {
			continue
		}
		seen, err := ledger.Has(ctx, post.ID)
		if err != nil {
			return err
		}
		if seen {
			continue
		}
		pending++
		fmt.Printf("  would mirror %s (%s, %d attachments)\n",
			post.ID, post.CreatedAt.Format(time.RFC3339), len(post.Media))
	}

	fmt.Printf("Fetched %d posts, %d pending\n", len(posts), pending)
	return nil
}
