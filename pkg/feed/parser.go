// Package feed fetches RSS/Atom documents and normalizes them into ordered
// item lists. Failures carry a typed kind so callers can isolate a broken
// feed without aborting the run.
package feed

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// Parser fetches and parses RSS/Atom feeds
type Parser struct {
	client    *http.Client
	userAgent string
	sanitizer *bluemonday.Policy
}

// NewParser creates a new feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Parse fetches a feed and converts it to items in document order.
// Entries carrying none of GUID, link or title are unidentifiable and skipped.
func (p *Parser) Parse(ctx context.Context, feedURL string) ([]domain.FeedItem, error) {
	body, err := p.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformed, URL: feedURL, Err: err}
	}

	feedTitle := parsed.Title
	if feedTitle == "" {
		feedTitle = feedURL
	}

	items := make([]domain.FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.GUID == "" && entry.Link == "" && entry.Title == "" {
			continue
		}

		item := domain.FeedItem{
			FeedURL:   feedURL,
			FeedTitle: feedTitle,
			GUID:      entry.GUID,
			Link:      entry.Link,
			Title:     strings.TrimSpace(entry.Title),
			Summary:   p.plainText(entry.Description),
		}

		if entry.PublishedParsed != nil {
			item.Published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			item.Published = entry.UpdatedParsed.UTC()
		}

		items = append(items, item)
	}

	return items, nil
}

// plainText strips markup from a summary so rule matching and message
// formatting never see raw HTML.
func (p *Parser) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(p.sanitizer.Sanitize(s)))
}

// fetch retrieves the raw feed document
func (p *Parser) fetch(ctx context.Context, feedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: feedURL, Err: err}
	}

	req.Header.Set("User-Agent", p.userAgent)
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		kind := KindNetwork
		var te interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
			kind = KindTimeout
		}
		return nil, &FetchError{Kind: kind, URL: feedURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &FetchError{Kind: KindHTTP, URL: feedURL, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	return resp.Body, nil
}
