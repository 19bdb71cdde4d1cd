// Package scraper holds the per-site adapters that discover article links on a
// news site and turn each link into a news.Article.
package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deusflow/newschannel/internal/fetcher"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
)

var (
	// ErrUnknownSource is returned by Registry.Resolve when no adapter claims a URL.
	ErrUnknownSource = errors.New("no adapter for source")
	// ErrInvalidArticle is returned when extraction produced no usable title.
	ErrInvalidArticle = errors.New("article has no title")
)

// Adapter crawls one news source.
type Adapter interface {
	Name() string
	// DiscoverLinks returns article URLs from the listing, de-duplicated in discovery order.
	DiscoverLinks(ctx context.Context) ([]string, error)
	ExtractArticle(ctx context.Context, url string) (*news.Article, error)
	// Crawl discovers and extracts. A failing link is logged and skipped; only a
	// discovery failure is returned as an error.
	Crawl(ctx context.Context) ([]news.Article, error)
}

// Getter is the part of fetcher.Fetcher the adapters need.
type Getter interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (string, error)
	FetchBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Deps are shared by every adapter built from a Registry.
type Deps struct {
	Fetcher     *fetcher.Fetcher
	Concurrency int
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Fetcher == nil {
		d.Fetcher = fetcher.New(fetcher.Options{})
	}
	if d.Concurrency <= 0 {
		d.Concurrency = 4
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Global
	}
	return d
}
