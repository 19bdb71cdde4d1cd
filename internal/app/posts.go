package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/newschannel/internal/assistant"
	"github.com/deusflow/newschannel/internal/images"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/ratelimit"
	"github.com/deusflow/newschannel/internal/storage"
)

// ErrNoGenerator is returned when no LLM provider is configured.
var ErrNoGenerator = errors.New("post generation is disabled")

// PostService generates social posts for stored articles.
type PostService struct {
	store    storage.ArticleStore
	gen      assistant.Generator
	provider string
	images   images.Searcher
	limiter  *ratelimit.DailyLimiter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

type PostServiceOptions struct {
	Store     storage.ArticleStore
	Generator assistant.Generator
	Provider  string // quota bucket, e.g. ratelimit.OpenAI
	Images    images.Searcher
	Limiter   *ratelimit.DailyLimiter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewPostService(opts PostServiceOptions) *PostService {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PostService{
		store:    opts.Store,
		gen:      opts.Generator,
		provider: opts.Provider,
		images:   opts.Images,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
}

// Enabled reports whether an LLM provider is configured.
func (s *PostService) Enabled() bool {
	return s != nil && s.gen != nil
}

// Generate asks the LLM for a new post, looks up images for it, appends it to
// the article and returns the new post's index together with the article.
// The append is done by the store against the latest stored article, so
// concurrent generations for one article each keep their post.
func (s *PostService) Generate(ctx context.Context, articleID string, variation int) (int, *news.Article, error) {
	if s.gen == nil {
		return -1, nil, ErrNoGenerator
	}

	a, err := s.store.GetByID(ctx, articleID)
	if err != nil {
		return -1, nil, err
	}

	text := a.Text
	if strings.TrimSpace(text) == "" {
		text = a.RawText
	}

	if s.limiter != nil {
		if err := s.limiter.Use(s.provider); err != nil {
			return -1, nil, err
		}
	}

	pd, err := s.gen.Generate(ctx, text, variation)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to generate post for %s: %w", articleID, err)
	}

	post := news.Post{SocialPost: pd.SocialPost, ImagesSearch: pd.ImagesSearch}
	post.ImagesURL = s.findImages(ctx, pd.ImagesSearch)
	if len(post.ImagesURL) == 0 {
		post.ImagesURL = append(post.ImagesURL, a.ImagesURL...)
	}

	idx, updated, err := s.store.AppendPost(ctx, articleID, post)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to store post for %s: %w", articleID, err)
	}

	s.metrics.IncrementPostsGenerated()
	s.log.Info("post generated", "id", articleID, "index", idx, "variation", variation, "images", len(post.ImagesURL))
	return idx, updated, nil
}

// findImages never fails the post; a broken image search leaves the article's own images.
func (s *PostService) findImages(ctx context.Context, query string) []string {
	if s.images == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	urls, err := s.images.Search(ctx, query, images.DefaultCount)
	if err != nil {
		s.log.Warn("image search failed", "query", query, "error", err)
		return nil
	}
	return urls
}
