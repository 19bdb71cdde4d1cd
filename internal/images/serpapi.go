// Package images finds pictures for generated posts through SerpAPI's Google
// image search.
package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/newschannel/internal/cache"
	"github.com/deusflow/newschannel/internal/ratelimit"
)

const (
	DefaultEndpoint = "https://serpapi.com/search.json"
	DefaultCount    = 5
	defaultTTL      = 24 * time.Hour
)

// Searcher returns up to n image URLs for query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]string, error)
}

// Getter is satisfied by *fetcher.Fetcher.
type Getter interface {
	FetchBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

type Options struct {
	APIKey   string
	Endpoint string
	Fetcher  Getter
	Cache    *cache.Cache[[]string]
	TTL      time.Duration
	Limiter  *ratelimit.DailyLimiter
	Logger   *slog.Logger
}

type SerpAPI struct {
	apiKey   string
	endpoint string
	fetch    Getter
	cache    *cache.Cache[[]string]
	ttl      time.Duration
	limiter  *ratelimit.DailyLimiter
	log      *slog.Logger
}

var _ Searcher = (*SerpAPI)(nil)

type searchResponse struct {
	Error         string `json:"error"`
	ImagesResults []struct {
		Original  string `json:"original"`
		Thumbnail string `json:"thumbnail"`
	} `json:"images_results"`
}

func NewSerpAPI(opts Options) (*SerpAPI, error) {
	if opts.APIKey == "" {
		return nil, errors.New("serpapi: api key is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("serpapi: fetcher is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SerpAPI{
		apiKey:   opts.APIKey,
		endpoint: opts.Endpoint,
		fetch:    opts.Fetcher,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		limiter:  opts.Limiter,
		log:      opts.Logger,
	}, nil
}

func (s *SerpAPI) Search(ctx context.Context, query string, n int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if n <= 0 {
		n = DefaultCount
	}

	var key string
	if s.cache != nil {
		key = cache.Key("serpapi", query, strconv.Itoa(n))
		if v, ok := s.cache.Get(key); ok {
			s.recordHit()
			return v, nil
		}
	}
	s.recordMiss()

	if s.limiter != nil {
		if err := s.limiter.Use(ratelimit.SerpAPI); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("tbm", "isch")
	q.Set("api_key", s.apiKey)

	body, err := s.fetch.FetchBytes(ctx, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("image search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("image search %q: invalid response: %w", query, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("image search %q: %s", query, resp.Error)
	}

	urls := make([]string, 0, n)
	for _, r := range resp.ImagesResults {
		if r.Original == "" {
			continue
		}
		urls = append(urls, r.Original)
		if len(urls) >= n {
			break
		}
	}

	s.log.Debug("image search done", "query", query, "results", len(urls))
	if s.cache != nil {
		s.cache.Set(key, urls, s.ttl)
	}
	return urls, nil
}

func (s *SerpAPI) recordHit() {
	if s.limiter != nil {
		s.limiter.RecordCacheHit()
	}
}

func (s *SerpAPI) recordMiss() {
	if s.limiter != nil {
		s.limiter.RecordCacheMiss()
	}
}
