// Package app wires the crawler, storage, notifier and admin API together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/deusflow/newschannel/internal/api"
	"github.com/deusflow/newschannel/internal/assistant"
	"github.com/deusflow/newschannel/internal/cache"
	"github.com/deusflow/newschannel/internal/config"
	"github.com/deusflow/newschannel/internal/fetcher"
	"github.com/deusflow/newschannel/internal/images"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/ratelimit"
	"github.com/deusflow/newschannel/internal/retry"
	"github.com/deusflow/newschannel/internal/scheduler"
	"github.com/deusflow/newschannel/internal/scraper"
	"github.com/deusflow/newschannel/internal/storage"
	"github.com/deusflow/newschannel/internal/telegram"
)

const (
	imageCacheTTL   = 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

// App holds every long-lived component of the service.
type App struct {
	cfg *config.Config
	log *slog.Logger

	Metrics   *metrics.Metrics
	Fetcher   *fetcher.Fetcher
	Registry  *scraper.Registry
	Articles  storage.ArticleStore
	Sources   storage.SourceRegistry
	Admins    storage.AdminRegistry
	Limiter   *ratelimit.DailyLimiter
	Posts     *PostService
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// New builds the component graph from cfg. Elasticsearch and Postgres are
// used when configured; otherwise articles live in a JSON file and sources
// in memory.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log, Metrics: metrics.Global}

	a.Fetcher = fetcher.New(fetcher.Options{
		Timeout: cfg.FetchTimeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.FetchAttempts,
			Multiplier:  1,
			MinWait:     cfg.FetchMinWait,
			MaxWait:     cfg.FetchMaxWait,
			Jitter:      true,
		},
		Logger: log,
	})
	a.Registry = scraper.NewRegistry(scraper.Deps{
		Fetcher:     a.Fetcher,
		Concurrency: cfg.ScrapeConcurrency,
		Logger:      log,
		Metrics:     a.Metrics,
	})

	if err := a.openArticles(ctx); err != nil {
		return nil, err
	}
	if err := a.openSources(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Limiter = ratelimit.NewDailyLimiter(map[string]int{
		ratelimit.OpenAI:  cfg.MaxLLMRequests,
		ratelimit.Gemini:  cfg.MaxLLMRequests,
		ratelimit.SerpAPI: cfg.MaxImageRequests,
	}, 0)

	gen, err := a.newGenerator(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Posts = NewPostService(PostServiceOptions{
		Store:     a.Articles,
		Generator: gen,
		Provider:  cfg.LLMProvider,
		Images:    a.newImageSearch(),
		Limiter:   a.Limiter,
		Metrics:   a.Metrics,
		Logger:    log,
	})

	var notifier scheduler.Notifier
	if cfg.TelegramToken != "" {
		client := telegram.New(telegram.Options{Token: cfg.TelegramToken, Logger: log})
		notifier = telegram.NewNotifier(client, a.Admins, cfg.AdminChatIDs, log)
	} else {
		log.Warn("TELEGRAM_TOKEN is not set, new articles will not be announced")
	}

	a.Scheduler = scheduler.New(scheduler.Options{
		Config: scheduler.Config{
			CrawlInterval:   cfg.CrawlInterval,
			RefreshInterval: cfg.RefreshInterval,
			MaxInstances:    cfg.MaxJobInstances,
			GenericFallback: cfg.GenericFallback,
		},
		Sources:  a.Sources,
		Adapters: a.Registry,
		Store:    a.Articles,
		Notifier: notifier,
		Logger:   log,
		Metrics:  a.Metrics,
	})
	return a, nil
}

func (a *App) openArticles(ctx context.Context) error {
	if len(a.cfg.ElasticsearchURLs) > 0 {
		es, err := storage.NewElasticsearch(storage.ElasticsearchConfig{
			Addresses: a.cfg.ElasticsearchURLs,
			Username:  a.cfg.ElasticsearchUser,
			Password:  a.cfg.ElasticsearchPass,
			Index:     a.cfg.ElasticsearchIndex,
		}, a.log)
		if err != nil {
			return err
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("failed to prepare article index: %w", err)
		}
		a.Articles = es
		a.log.Info("articles stored in elasticsearch", "index", a.cfg.ElasticsearchIndex)
		return nil
	}

	mem := storage.NewMemoryArticles(a.cfg.ArticlesFile)
	if err := mem.Load(); err != nil {
		return err
	}
	a.Articles = mem
	a.log.Info("articles stored in file", "path", a.cfg.ArticlesFile, "count", mem.Len())
	return nil
}

func (a *App) openSources(ctx context.Context) error {
	if a.cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(ctx, a.cfg.DatabaseURL, a.log)
		if err != nil {
			return err
		}
		a.Sources, a.Admins = pg, pg
		a.closers = append(a.closers, pg.Close)
		return nil
	}
	mem := storage.NewMemorySources()
	a.Sources, a.Admins = mem, mem
	a.log.Info("DATABASE_URL is not set, keeping sources in memory")
	return nil
}

func (a *App) newGenerator(ctx context.Context) (assistant.Generator, error) {
	switch a.cfg.LLMProvider {
	case ratelimit.OpenAI:
		if a.cfg.OpenAIAPIKey == "" {
			a.log.Warn("OPENAI_API_KEY is not set, post generation disabled")
			return nil, nil
		}
		return assistant.NewOpenAI(assistant.OpenAIOptions{
			APIKey:   a.cfg.OpenAIAPIKey,
			Language: a.cfg.PostLanguage,
			Logger:   a.log,
		}), nil
	case ratelimit.Gemini:
		if a.cfg.GeminiAPIKey == "" {
			a.log.Warn("GEMINI_API_KEY is not set, post generation disabled")
			return nil, nil
		}
		g, err := assistant.NewGemini(ctx, assistant.GeminiOptions{
			APIKey:   a.cfg.GeminiAPIKey,
			Language: a.cfg.PostLanguage,
			Logger:   a.log,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		return nil, nil
	}
}

func (a *App) newImageSearch() images.Searcher {
	if a.cfg.SerpAPIKey == "" {
		return nil
	}
	c := cache.New[[]string]()
	a.closers = append(a.closers, func() error { c.Close(); return nil })

	s, err := images.NewSerpAPI(images.Options{
		APIKey:  a.cfg.SerpAPIKey,
		Fetcher: a.Fetcher,
		Cache:   c,
		TTL:     imageCacheTTL,
		Limiter: a.Limiter,
		Logger:  a.log,
	})
	if err != nil {
		a.log.Warn("image search disabled", "error", err)
		return nil
	}
	return s
}

// SeedRegistry imports the sources and admins listed in the seeds file.
// Existing entries are left as they are, disabled sources are re-enabled.
func (a *App) SeedRegistry(ctx context.Context) error {
	seeds, err := config.LoadSeeds(a.cfg.SourcesFile)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, link := range seeds.Sources {
		if _, err := a.Sources.AddSource(ctx, link); err != nil {
			result = multierror.Append(result, fmt.Errorf("source %s: %w", link, err))
		}
	}
	for _, adm := range seeds.Admins {
		if _, err := a.Admins.AddAdmin(ctx, adm.UserID, adm.Name); err != nil {
			result = multierror.Append(result, fmt.Errorf("admin %s: %w", adm.UserID, err))
		}
	}
	a.log.Info("registry seeded", "sources", len(seeds.Sources), "admins", len(seeds.Admins))
	return result.ErrorOrNil()
}

// Handler returns the admin API router.
func (a *App) Handler() http.Handler {
	deps := api.Deps{
		Scheduler: a.Scheduler,
		Sources:   a.Sources,
		Articles:  a.Articles,
		Metrics:   a.Metrics,
		Stats:     map[string]func() map[string]interface{}{"quota": a.Limiter.GetStats},
		Logger:    a.log,
	}
	if a.Posts.Enabled() {
		deps.Posts = a.Posts
	}
	return api.NewRouter(deps)
}

// Run seeds the registry, starts crawling and serves the admin API until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.SeedRegistry(ctx); err != nil {
		a.log.Warn("seeding finished with errors", "error", err)
	}

	srv := api.NewHTTPServer(a.cfg.HTTPAddr, a.Handler())
	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("admin API listening", "addr", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := a.Scheduler.StartCrawling(ctx); err != nil {
		_ = srv.Close()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("admin API failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("failed to shut down admin API", "error", err)
	}
	a.Scheduler.Stop()
	return runErr
}

// Close releases database connections and background goroutines.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
