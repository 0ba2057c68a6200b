package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MirrorService is the core domain service. It owns the per-tick pipeline:
// fetch recent source posts, drop the ones already mirrored, and replay the
// remainder oldest-first through media fetch, publish, and ledger commit.
type MirrorService struct {
	reader    SourceReader
	ledger    Ledger
	fetcher   MediaFetcher
	publisher Publisher
	lookback  time.Duration
	logger    *slog.Logger

	// now is swapped out in tests to pin the lookback window.
	now func() time.Time
}

// NewMirrorService creates a MirrorService. A lookback of zero disables the
// age window, so every uncommitted post on the recent page is mirrored.
func NewMirrorService(
	reader SourceReader,
	ledger Ledger,
	fetcher MediaFetcher,
	publisher Publisher,
	lookback time.Duration,
	logger *slog.Logger,
) (*MirrorService, error) {
	if reader == nil {
		return nil, errors.New("source reader is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if fetcher == nil {
		return nil, errors.New("media fetcher is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if lookback < 0 {
		return nil, fmt.Errorf("lookback must not be negative, got %s", lookback)
	}

	return &MirrorService{
		reader:    reader,
		ledger:    ledger,
		fetcher:   fetcher,
		publisher: publisher,
		lookback:  lookback,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Tick runs one complete poll cycle. Per-post failures are logged and skipped
// so one bad post never blocks the rest of the queue; the failed post stays
// uncommitted and is retried on a later tick. Tick returns an error only when
// the whole cycle must be abandoned: the source feed is unreachable
// (ErrSourceUnavailable) or the ledger stops responding (ErrLedgerUnavailable).
func (s *MirrorService) Tick(ctx context.Context) error {
	posts, err := s.reader.FetchRecent(ctx)
	if err != nil {
		return fmt.Errorf("fetch recent posts: %w", err)
	}
	if len(posts) == 0 {
		s.logger.Debug("source returned no posts")
		return nil
	}

	queue, err := s.selectNew(ctx, posts)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		s.logger.Debug("nothing new to mirror", "fetched", len(posts))
		return nil
	}

	s.logger.Info("mirroring new posts", "count", len(queue))

	for _, post := range queue {
		res := s.mirror(ctx, post)
		if res.Err != nil {
			if errors.Is(res.Err, ErrLedgerUnavailable) {
				// Publishing more posts we cannot record risks duplicates on
				// the next tick, so stop here and let the poller back off.
				return res.Err
			}
			s.logger.Error("repost failed",
				"source_post_id", res.SourcePostID,
				"error", res.Err,
			)
			continue
		}
		s.logger.Info("post mirrored",
			"source_post_id", res.SourcePostID,
			"destination_post_id", res.DestinationPostID,
		)
	}

	return nil
}

// selectNew filters the newest-first fetch result down to the posts that still
// need mirroring and returns them oldest-first, so reposts land on the
// destination timeline in the same relative order as the source.
func (s *MirrorService) selectNew(ctx context.Context, posts []SourcePost) ([]SourcePost, error) {
	var cutoff time.Time
	if s.lookback > 0 {
		cutoff = s.now().Add(-s.lookback)
	}

	queue := make([]SourcePost, 0, len(posts))
	for i := len(posts) - 1; i >= 0; i-- {
		post := posts[i]
		if !cutoff.IsZero() && post.CreatedAt.Before(cutoff) {
			continue
		}

		seen, err := s.ledger.Has(ctx, post.ID)
		if err != nil {
			return nil, fmt.Errorf("ledger lookup %s: %w", post.ID, err)
		}
		if seen {
			continue
		}
		queue = append(queue, post)
	}

	return queue, nil
}

// mirror processes a single post: download every attachment, publish, then
// commit. The ledger is written only after a successful publish, so a crash at
// any earlier point leaves the post eligible for retry (at-least-once).
func (s *MirrorService) mirror(ctx context.Context, post SourcePost) RepostResult {
	res := RepostResult{SourcePostID: post.ID}

	payloads := make([]MediaPayload, 0, len(post.Media))
	for _, ref := range post.Media {
		payload, err := s.fetcher.Fetch(ctx, ref)
		if err != nil {
			// No partial posts with missing media: abort the whole repost.
			res.Err = fmt.Errorf("media %s: %w", ref.URL, err)
			return res
		}
		payloads = append(payloads, payload)
	}

	statusID, err := s.publisher.Publish(ctx, post.Text, payloads)
	if err != nil {
		res.Err = fmt.Errorf("publish: %w", err)
		return res
	}
	res.DestinationPostID = statusID

	if err := s.ledger.Commit(ctx, post.ID, s.now().UTC()); err != nil {
		res.Err = fmt.Errorf("commit after publish: %w", err)
		return res
	}

	return res
}
