package domain

import (
	"context"
	"time"
)

// SourceReader fetches the most recent public posts of the configured source
// account. Implementations must not require authentication.
type SourceReader interface {
	// FetchRecent returns the account's most recent posts, newest-first,
	// bounded to the platform's single recent-posts page. An account with no
	// posts yields (nil, nil). Network or parse failures wrap
	// ErrSourceUnavailable.
	FetchRecent(ctx context.Context) ([]SourcePost, error)
}

// Ledger is the durable record of source post ids that have already been
// mirrored. It is the single source of truth for idempotence.
type Ledger interface {
	// Has reports whether the id has been committed. Storage failures wrap
	// ErrLedgerUnavailable.
	Has(ctx context.Context, id string) (bool, error)

	// Commit durably records that a destination post exists for id. It is
	// idempotent: committing a present id is a no-op, never an error.
	Commit(ctx context.Context, id string, repostedAt time.Time) error
}

// MediaFetcher downloads a single media attachment into memory.
type MediaFetcher interface {
	// Fetch retrieves the media behind ref. Non-2xx responses, timeouts, and
	// unsupported content types wrap ErrMediaFetchFailed.
	Fetch(ctx context.Context, ref MediaRef) (MediaPayload, error)
}

// Publisher creates posts on the destination account.
type Publisher interface {
	// Publish uploads the payloads in order, then creates a status with the
	// given text referencing the uploaded attachments. It returns the id of
	// the created status. Upload rejections wrap ErrUploadFailed; status
	// creation rejections wrap ErrPostCreationFailed.
	Publish(ctx context.Context, text string, payloads []MediaPayload) (string, error)
}
