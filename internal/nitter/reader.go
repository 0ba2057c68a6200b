// Package nitter reads the public posts of a source account through a
// Nitter-style RSS feed. No source-platform credentials are needed.
package nitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/mpruett/feedmirror/internal/domain"
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "feedmirror/1.0 (+https://github.com/mpruett/feedmirror)"
)

var statusIDRe = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// Reader implements domain.SourceReader over {baseURL}/{handle}/rss.
type Reader struct {
	feedURL string
	parser  *gofeed.Parser
}

// NewReader creates a reader for the given account handle.
func NewReader(baseURL, handle string) (*Reader, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("feed base URL is required")
	}
	if strings.TrimSpace(handle) == "" {
		return nil, errors.New("source handle is required")
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{
		Timeout:   fetchTimeout,
		Transport: &uaTransport{base: http.DefaultTransport},
	}

	return &Reader{
		feedURL: strings.TrimRight(baseURL, "/") + "/" + strings.TrimPrefix(handle, "@") + "/rss",
		parser:  parser,
	}, nil
}

// FetchRecent returns the account's recent original posts, newest-first.
// Retweets and replies are skipped. An account with no posts yields (nil, nil).
func (r *Reader) FetchRecent(ctx context.Context) ([]domain.SourcePost, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(r.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrSourceUnavailable, r.feedURL, err)
	}

	posts := make([]domain.SourcePost, 0, len(feed.Items))
	for _, item := range feed.Items {
		if isRepostOrReply(item.Title) {
			continue
		}
		post, err := postFromItem(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %s: %v", domain.ErrSourceUnavailable, item.Link, err)
		}
		posts = append(posts, post)
	}

	// Feed documents are newest-first by convention; enforce it anyway so the
	// replay order downstream does not depend on the feed generator.
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if len(posts) == 0 {
		return nil, nil
	}
	return posts, nil
}

// isRepostOrReply matches the title prefixes Nitter puts on retweets and
// replies. Only original posts are mirrored.
func isRepostOrReply(title string) bool {
	return strings.HasPrefix(title, "RT by ") || strings.HasPrefix(title, "R to ")
}

func postFromItem(item *gofeed.Item) (domain.SourcePost, error) {
	text, media, err := parseDescription(item.Description)
	if err != nil {
		return domain.SourcePost{}, fmt.Errorf("parse description: %w", err)
	}
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}

	var createdAt time.Time
	if item.PublishedParsed != nil {
		createdAt = item.PublishedParsed.UTC()
	}

	return domain.SourcePost{
		ID:        itemID(item),
		Text:      text,
		CreatedAt: createdAt,
		Media:     media,
	}, nil
}

// itemID prefers the numeric status id embedded in the item link so the same
// post carries the same id regardless of which feed host served it.
func itemID(item *gofeed.Item) string {
	for _, candidate := range []string{item.Link, item.GUID} {
		if m := statusIDRe.FindStringSubmatch(candidate); m != nil {
			return m[1]
		}
	}
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// parseDescription splits an item's HTML description into plain text and the
// ordered list of media attachments.
func parseDescription(desc string) (string, []domain.MediaRef, error) {
	if strings.TrimSpace(desc) == "" {
		return "", nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return "", nil, err
	}

	var media []domain.MediaRef
	doc.Find("img, video").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "img":
			if src, ok := sel.Attr("src"); ok && src != "" {
				media = append(media, domain.MediaRef{URL: src, Kind: domain.MediaImage})
			}
		case "video":
			src, ok := sel.Attr("src")
			if !ok || src == "" {
				src, ok = sel.Find("source").First().Attr("src")
			}
			if ok && src != "" {
				media = append(media, domain.MediaRef{URL: src, Kind: domain.MediaVideo})
			}
		}
	})

	// Media elements out, line breaks in, then flatten to text.
	doc.Find("img, video").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	text := strings.TrimSpace(doc.Text())

	return text, media, nil
}

// uaTransport injects a User-Agent header into every feed request.
type uaTransport struct {
	base http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}
