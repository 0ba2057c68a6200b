package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mpruett/feedmirror/internal/config"
	"github.com/mpruett/feedmirror/internal/domain"
	"github.com/mpruett/feedmirror/internal/httpserver"
	"github.com/mpruett/feedmirror/internal/mastodon"
	"github.com/mpruett/feedmirror/internal/media"
	"github.com/mpruett/feedmirror/internal/nitter"
	"github.com/mpruett/feedmirror/internal/poller"
	"github.com/mpruett/feedmirror/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Optional .env file for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Without a readable ledger the mirror cannot guarantee idempotence, so a
	// ledger failure here is fatal.
	ledger, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()
	logger.Info("ledger opened", "path", cfg.DBPath)

	reader, err := nitter.NewReader(cfg.FeedBaseURL, cfg.SourceHandle)
	if err != nil {
		return fmt.Errorf("create source reader: %w", err)
	}

	publisher, err := mastodon.NewClient(cfg.MastodonServer, cfg.MastodonAccessToken)
	if err != nil {
		return fmt.Errorf("create mastodon client: %w", err)
	}

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 30*time.Second)
	if err := publisher.VerifyCredentials(verifyCtx); err != nil {
		// Not fatal: a transient instance outage at boot should not keep an
		// unattended service down. Bad credentials will keep failing loudly.
		logger.Warn("mastodon credential check failed", "error", err)
	} else {
		logger.Info("mastodon credentials verified", "server", cfg.MastodonServer)
	}
	cancelVerify()

	service, err := domain.NewMirrorService(reader, ledger, media.NewFetcher(), publisher, cfg.Lookback, logger)
	if err != nil {
		return fmt.Errorf("create mirror service: %w", err)
	}

	p, err := poller.New(service, cfg.PollInterval, logger)
	if err != nil {
		return fmt.Errorf("create poller: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poller exited with error", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg.Port, ledger, p, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server exited with error", "error", err)
		}
	}()

	logger.Info("mirror started",
		"source_handle", cfg.SourceHandle,
		"poll_interval", cfg.PollInterval,
		"port", cfg.Port,
	)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down ops server", "error", err)
	}

	return nil
}
