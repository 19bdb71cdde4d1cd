package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newschannel/internal/extract"
	"github.com/deusflow/newschannel/internal/news"
)

// Site describes how one news site is crawled. Most sites only need a listing
// page, a link selector and a main-image selector.
type Site struct {
	Name    string
	Domains []string

	// ListURLs are fixed listing pages. When empty the source URL is the listing.
	ListURLs []string
	// LinkBase overrides the page URL when resolving relative links.
	LinkBase string
	// Headers are sent with every request for this site.
	Headers map[string]string

	// Links returns raw hrefs from a listing page; source is the configured source URL.
	Links func(doc *goquery.Document, source string) []string
	// Image returns the main image src from an article page, or "".
	Image func(doc *goquery.Document) string
	// Filters are ANDed over the resolved links.
	Filters []LinkFilter
	// Discover replaces listing-page scraping (JSON APIs, feeds).
	Discover func(ctx context.Context, g Getter, source string) ([]string, error)
	// MaxLinks caps discovery; 0 means no cap.
	MaxLinks int
}

// Crawler is the adapter every site shares. Sites differ only in their Site value.
type Crawler struct {
	site        Site
	source      string
	deps        Deps
	log         *slog.Logger
	concurrency int
}

var _ Adapter = (*Crawler)(nil)

func NewCrawler(site Site, source string, deps Deps) *Crawler {
	deps = deps.withDefaults()
	return &Crawler{
		site:        site,
		source:      source,
		deps:        deps,
		log:         deps.Logger.With("adapter", site.Name),
		concurrency: deps.Concurrency,
	}
}

func (c *Crawler) Name() string { return c.site.Name }

// Source is the URL this adapter was built for.
func (c *Crawler) Source() string { return c.source }

func (c *Crawler) DiscoverLinks(ctx context.Context) ([]string, error) {
	s := c.deps.Fetcher.Session()
	defer s.Close()
	return c.discover(ctx, s)
}

func (c *Crawler) ExtractArticle(ctx context.Context, url string) (*news.Article, error) {
	s := c.deps.Fetcher.Session()
	defer s.Close()
	return c.extract(ctx, s, url)
}

func (c *Crawler) Crawl(ctx context.Context) ([]news.Article, error) {
	start := time.Now()
	s := c.deps.Fetcher.Session()
	defer s.Close()

	links, err := c.discover(ctx, s)
	if err != nil {
		return nil, err
	}
	c.log.Info("discovered links", "source", c.source, "count", len(links))

	results := make([]*news.Article, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, link := range links {
		g.Go(func() error {
			a, err := c.extract(gctx, s, link)
			if err != nil {
				// Lenient: one bad page never aborts the crawl.
				c.deps.Metrics.IncrementExtractionFailures()
				c.log.Warn("skipping article", "url", link, "error", err)
				return nil
			}
			c.deps.Metrics.IncrementArticlesExtracted()
			results[i] = a
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]news.Article, 0, len(links))
	for _, a := range results {
		if a != nil {
			articles = append(articles, *a)
		}
	}
	c.log.Info("crawl finished", "source", c.source, "articles", len(articles), "links", len(links), "took", time.Since(start))
	return articles, nil
}

func (c *Crawler) listURLs() []string {
	if len(c.site.ListURLs) > 0 {
		return c.site.ListURLs
	}
	return []string{c.source}
}

func (c *Crawler) discover(ctx context.Context, g Getter) ([]string, error) {
	if c.site.Discover != nil {
		raw, err := c.site.Discover(ctx, g, c.source)
		if err != nil {
			return nil, fmt.Errorf("%s: discover: %w", c.site.Name, err)
		}
		return c.capped(collect(c.base(c.source), raw, c.site.Filters)), nil
	}

	var hrefs []string
	var base string
	for _, page := range c.listURLs() {
		body, err := g.FetchBytes(ctx, page, c.site.Headers)
		if err != nil {
			return nil, fmt.Errorf("%s: listing %s: %w", c.site.Name, page, err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%s: parse listing %s: %w", c.site.Name, page, err)
		}
		// Each listing page resolves against itself.
		base = c.base(page)
		hrefs = append(hrefs, collect(base, c.site.Links(doc, c.source), nil)...)
	}
	return c.capped(collect(base, hrefs, c.site.Filters)), nil
}

func (c *Crawler) capped(links []string) []string {
	if c.site.MaxLinks > 0 && len(links) > c.site.MaxLinks {
		return links[:c.site.MaxLinks]
	}
	return links
}

func (c *Crawler) base(page string) string {
	if c.site.LinkBase != "" {
		return c.site.LinkBase
	}
	return page
}

func (c *Crawler) extract(ctx context.Context, g Getter, url string) (*news.Article, error) {
	body, err := g.FetchBytes(ctx, url, c.site.Headers)
	if err != nil {
		return nil, err
	}

	var image string
	if c.site.Image != nil {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			image = resolve(url, c.site.Image(doc))
		}
	}

	fields, err := extract.Extract(body, url)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	a := news.FromFields(fields)
	if a.Source == "" {
		a.Source = url
	}
	a.AddImage(image)
	if !a.Valid() {
		return nil, fmt.Errorf("%s: %w", url, ErrInvalidArticle)
	}
	return &a, nil
}

// attrs collects attr from every selection match.
func attrs(doc *goquery.Document, selector, attr string) []string {
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	})
	return out
}

// firstAttr returns attr of the first match that carries it.
func firstAttr(doc *goquery.Document, selector, attr string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return out
}
