// Package media downloads post attachments into memory for re-upload.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mpruett/feedmirror/internal/domain"
)

const (
	fetchTimeout = 60 * time.Second

	// maxBytes caps a single download at Mastodon's default video limit.
	// Anything larger would be rejected on upload anyway.
	maxBytes = 40 << 20
)

// Fetcher implements domain.MediaFetcher over plain HTTP GET. Payloads live
// only in memory and are discarded after upload or on failure.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a media fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch downloads the media behind ref. The payload kind is derived from the
// response Content-Type, which overrides whatever the feed declared.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.MediaRef) (domain.MediaPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: %v", domain.ErrMediaFetchFailed, ref.URL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: %v", domain.ErrMediaFetchFailed, ref.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: HTTP %d", domain.ErrMediaFetchFailed, ref.URL, resp.StatusCode)
	}

	contentType, kind, err := classify(resp.Header.Get("Content-Type"))
	if err != nil {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: %v", domain.ErrMediaFetchFailed, ref.URL, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: read body: %v", domain.ErrMediaFetchFailed, ref.URL, err)
	}
	if len(body) > maxBytes {
		return domain.MediaPayload{}, fmt.Errorf("%w: %s: larger than %d bytes", domain.ErrMediaFetchFailed, ref.URL, maxBytes)
	}

	return domain.MediaPayload{
		Kind:        kind,
		Bytes:       body,
		ContentType: contentType,
	}, nil
}

// classify maps a Content-Type header to a media kind. Only image and video
// payloads are acceptable; anything else fails the containing post.
func classify(header string) (string, domain.MediaKind, error) {
	contentType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", domain.MediaUnknown, fmt.Errorf("parse content type %q: %v", header, err)
	}

	switch {
	case strings.HasPrefix(contentType, "image/"):
		return contentType, domain.MediaImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return contentType, domain.MediaVideo, nil
	default:
		return "", domain.MediaUnknown, fmt.Errorf("unsupported content type %q", contentType)
	}
}
