package parser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

// FeedReader downloads RSS/Atom/JSON feeds and returns their entries in feed order.
type FeedReader struct {
	fetcher fetcher
	parser  *gofeed.Parser
}

var _ ports.FeedReader = (*FeedReader)(nil)

// NewFeedReader wires an HTTP client; a nil client gets one with the given timeout.
func NewFeedReader(client *http.Client, timeout time.Duration, userAgent string) *FeedReader {
	return &FeedReader{
		fetcher: newFetcher(client, timeout, userAgent),
		parser:  gofeed.NewParser(),
	}
}

// Read fetches and parses one feed.
func (r *FeedReader) Read(ctx context.Context, url string) ([]domain.Entry, error) {
	body, err := r.fetcher.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := r.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	entries := make([]domain.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) domain.Entry {
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}

	return domain.Entry{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Summary:   summary,
		Published: published,
	}
}
