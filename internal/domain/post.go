package domain

import "time"

// MediaKind classifies a media attachment.
type MediaKind string

const (
	MediaImage   MediaKind = "image"
	MediaVideo   MediaKind = "video"
	MediaUnknown MediaKind = "unknown"
)

// MediaRef points at a media file attached to a source post. Order within a
// post is significant and is preserved all the way to the destination status.
type MediaRef struct {
	// URL is the direct HTTP(S) URL of the media file.
	URL string

	// Kind is the attachment type as declared by the source. The fetcher
	// refines it from the response Content-Type.
	Kind MediaKind
}

// SourcePost is one post fetched from the source account. It is immutable and
// lives only for the duration of a poll tick.
type SourcePost struct {
	// ID is the source platform's opaque unique identifier for the post.
	ID string

	// Text is the post body, already stripped of source-side markup.
	Text string

	// CreatedAt is the post's publication time on the source platform.
	CreatedAt time.Time

	// Media lists the post's attachments in their original order.
	Media []MediaRef
}

// MediaPayload is a downloaded attachment held in memory between fetch and
// upload. It is never persisted.
type MediaPayload struct {
	Kind        MediaKind
	Bytes       []byte
	ContentType string
}

// RepostResult records the outcome of mirroring a single post. It exists for
// logging only; the ledger is the durable record.
type RepostResult struct {
	// SourcePostID is the id of the post on the source platform.
	SourcePostID string

	// DestinationPostID is the id of the created status. Empty on failure.
	DestinationPostID string

	// Err is the failure that prevented the repost, nil on success.
	Err error
}
