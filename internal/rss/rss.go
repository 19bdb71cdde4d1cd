// Package rss discovers article links from RSS/Atom feeds.
package rss

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Getter downloads a URL; fetcher.Fetcher satisfies it.
type Getter interface {
	FetchBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Item is the subset of a feed entry the crawler cares about.
type Item struct {
	Title     string
	Link      string
	Published string
	Image     string
}

// FetchItems downloads and parses one feed.
func FetchItems(ctx context.Context, g Getter, feedURL string) ([]Item, error) {
	body, err := g.FetchBytes(ctx, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" && len(it.Links) > 0 {
			link = strings.TrimSpace(it.Links[0])
		}
		if link == "" {
			continue
		}
		item := Item{Title: strings.TrimSpace(it.Title), Link: link, Published: it.Published}
		if it.Image != nil {
			item.Image = it.Image.URL
		}
		items = append(items, item)
	}
	return items, nil
}

// Links returns the item links of feedURL in feed order.
func Links(ctx context.Context, g Getter, feedURL string) ([]string, error) {
	items, err := FetchItems(ctx, g, feedURL)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(items))
	for _, it := range items {
		links = append(links, it.Link)
	}
	return links, nil
}

// LooksLikeFeed reports whether a source URL points at a feed rather than a listing page.
func LooksLikeFeed(u string) bool {
	l := strings.ToLower(u)
	if i := strings.IndexAny(l, "?#"); i >= 0 {
		l = l[:i]
	}
	l = strings.TrimSuffix(l, "/")
	for _, suffix := range []string{".rss", ".atom", ".xml", "/rss", "/feed", "/atom", "/rss2"} {
		if strings.HasSuffix(l, suffix) {
			return true
		}
	}
	return strings.Contains(l, "/rss/") || strings.Contains(l, "/feeds/")
}
