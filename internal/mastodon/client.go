// Package mastodon is a minimal Mastodon REST client covering the two calls
// the mirror needs: media upload and status creation.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mpruett/feedmirror/internal/domain"
)

const (
	requestTimeout = 60 * time.Second

	// defaultStatusLimit is the character limit of a stock Mastodon instance.
	defaultStatusLimit = 500

	// truncationMarker is appended when source text exceeds the status limit.
	// Partial text is preferable to dropping an otherwise-successful repost.
	truncationMarker = "…"
)

// Client talks to a single Mastodon instance with a fixed access token.
type Client struct {
	server      string
	accessToken string
	statusLimit int
	httpClient  *http.Client
}

// NewClient creates a client for the given instance URL and access token.
func NewClient(server, accessToken string) (*Client, error) {
	if strings.TrimSpace(server) == "" {
		return nil, errors.New("mastodon server URL is required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("mastodon access token is required")
	}

	return &Client{
		server:      strings.TrimRight(server, "/"),
		accessToken: accessToken,
		statusLimit: defaultStatusLimit,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

// VerifyCredentials checks that the access token is valid for the instance.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("verify credentials: API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Publish uploads the payloads in order, then creates a status carrying the
// text and the full ordered list of attachment ids. Either step failing aborts
// the repost; no partial status is ever created by this call.
func (c *Client) Publish(ctx context.Context, text string, payloads []domain.MediaPayload) (string, error) {
	mediaIDs := make([]string, 0, len(payloads))
	for i, payload := range payloads {
		id, err := c.uploadMedia(ctx, payload)
		if err != nil {
			return "", fmt.Errorf("%w: attachment %d: %v", domain.ErrUploadFailed, i, err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	status, err := c.createStatus(ctx, truncateStatus(text, c.statusLimit), mediaIDs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPostCreationFailed, err)
	}
	return status, nil
}

// uploadMedia posts one attachment to the media endpoint and returns its id.
func (c *Client) uploadMedia(ctx context.Context, payload domain.MediaPayload) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filenameFor(payload.ContentType))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload.Bytes); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/v1/media", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var attachment mediaAttachment
	if err := json.Unmarshal(respBody, &attachment); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if attachment.ID == "" {
		return "", errors.New("media response missing id")
	}
	return attachment.ID, nil
}

// createStatus posts the final status. An Idempotency-Key guards against the
// instance creating duplicates if the request is retried after a timeout.
func (c *Client) createStatus(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload, err := json.Marshal(statusRequest{
		Status:   text,
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/v1/statuses", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var status statusResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if status.ID == "" {
		return "", errors.New("status response missing id")
	}
	return status.ID, nil
}

// truncateStatus cuts text to at most limit runes, replacing the tail with a
// marker when it does not fit.
func truncateStatus(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + truncationMarker
}

// filenameFor gives the multipart part a plausible filename; some instances
// sniff the extension in addition to the payload bytes.
func filenameFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "media.jpg"
	case "image/png":
		return "media.png"
	case "image/gif":
		return "media.gif"
	case "image/webp":
		return "media.webp"
	case "video/mp4":
		return "media.mp4"
	case "video/webm":
		return "media.webm"
	default:
		return "media.bin"
	}
}

type statusRequest struct {
	Status   string   `json:"status"`
	MediaIDs []string `json:"media_ids,omitempty"`
}

type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type mediaAttachment struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}
