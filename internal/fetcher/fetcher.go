// Package fetcher downloads RSS feeds and extracts headlines usable as post topics.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"social_bots/internal/filter"
	"social_bots/internal/model"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses an RSS feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SocialBots/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Headlines returns up to limit distinct item titles that pass the filters,
// in feed order. limit <= 0 means no limit.
func Headlines(items []*gofeed.Item, filters []model.Filter, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] || !filter.Match(title, filters) {
			continue
		}
		seen[key] = true
		out = append(out, title)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
