package domain

import "errors"

// Failure taxonomy for the mirror pipeline. Collaborators wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is while
// keeping the underlying cause in the chain.
var (
	// ErrSourceUnavailable means the source feed could not be fetched or
	// parsed. It aborts the current tick only.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrLedgerUnavailable means ledger storage could not be read or written.
	// Fatal at startup; retried with backoff mid-run.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrMediaFetchFailed means an attachment download failed. It aborts the
	// repost of the containing post; a caption referring to missing media is
	// worse than a delayed repost.
	ErrMediaFetchFailed = errors.New("media fetch failed")

	// ErrUploadFailed means the destination rejected an attachment upload.
	ErrUploadFailed = errors.New("media upload failed")

	// ErrPostCreationFailed means the destination rejected the final status.
	ErrPostCreationFailed = errors.New("post creation failed")
)
