package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newschannel/internal/logger"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/scraper"
	"github.com/deusflow/newschannel/internal/storage"
)

type fakeAdapter struct {
	name     string
	articles []news.Article
	err      error
	block    chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) DiscoverLinks(context.Context) ([]string, error) { return nil, nil }

func (f *fakeAdapter) ExtractArticle(context.Context, string) (*news.Article, error) {
	return nil, errors.New("not used")
}

func (f *fakeAdapter) Crawl(context.Context) ([]news.Article, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.articles, f.err
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResolver struct {
	adapters map[string]*fakeAdapter
	generic  *fakeAdapter
}

func (r *fakeResolver) Resolve(source string) (scraper.Adapter, error) {
	if a, ok := r.adapters[source]; ok {
		return a, nil
	}
	return nil, scraper.ErrUnknownSource
}

func (r *fakeResolver) Generic(string) scraper.Adapter { return r.generic }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []news.Article
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, a news.Article) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, a)
	return n.err
}

type harness struct {
	sched    *Scheduler
	sources  *storage.MemorySources
	store    *storage.MemoryArticles
	resolver *fakeResolver
	notifier *fakeNotifier
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, cfg Config, links ...string) *harness {
	t.Helper()
	h := &harness{
		sources:  storage.NewMemorySources(links...),
		store:    storage.NewMemoryArticles(""),
		resolver: &fakeResolver{adapters: map[string]*fakeAdapter{}, generic: &fakeAdapter{name: "generic"}},
		notifier: &fakeNotifier{},
		metrics:  metrics.New(),
	}
	for _, l := range links {
		h.resolver.adapters[l] = &fakeAdapter{name: l}
	}
	h.sched = New(Options{
		Config:   cfg,
		Sources:  h.sources,
		Adapters: h.resolver,
		Store:    h.store,
		Notifier: h.notifier,
		Logger:   logger.Discard(),
		Metrics:  h.metrics,
	})
	t.Cleanup(h.sched.Stop)
	return h
}

func TestRefreshSourcesSetDifference(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, "https://a.example/", "https://b.example/")
	h.resolver.adapters["https://c.example/"] = &fakeAdapter{name: "c"}

	h.sched.RefreshSources(ctx)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/"}, h.sched.Jobs())
	bID, ok := h.sched.EntryID("https://b.example/")
	require.True(t, ok)

	require.NoError(t, h.sources.DisableSourceByLink(ctx, "https://a.example/"))
	_, err := h.sources.AddSource(ctx, "https://c.example/")
	require.NoError(t, err)

	h.sched.RefreshSources(ctx)
	assert.Equal(t, []string{"https://b.example/", "https://c.example/"}, h.sched.Jobs())

	again, ok := h.sched.EntryID("https://b.example/")
	require.True(t, ok)
	assert.Equal(t, bID, again, "untouched source keeps its job")
}

func TestRefreshSourcesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, "https://a.example/")

	h.sched.RefreshSources(ctx)
	id, _ := h.sched.EntryID("https://a.example/")
	h.sched.RefreshSources(ctx)
	h.sched.RefreshSources(ctx)

	again, _ := h.sched.EntryID("https://a.example/")
	assert.Equal(t, id, again)
	assert.Len(t, h.sched.Jobs(), 1)

	h.sched.Stop()
	assert.Equal(t, 1, h.resolver.adapters["https://a.example/"].Calls(), "only the scheduling run fired")
}

func TestRefreshSourcesRegistryFailureKeepsJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, "https://a.example/")
	h.sched.RefreshSources(ctx)

	h.sources.SetErr(errors.New("connection refused"))
	h.sched.RefreshSources(ctx)

	assert.Equal(t, []string{"https://a.example/"}, h.sched.Jobs())
}

func TestSingleSourceScenario(t *testing.T) {
	h := newHarness(t, Config{}, "https://site.example/news")
	h.resolver.adapters["https://site.example/news"].articles = []news.Article{
		{Title: "Songkran dates announced", Source: "https://site.example/news/1", Date: "2024-04-01"},
	}

	h.sched.RefreshSources(context.Background())
	h.sched.Stop()

	assert.Equal(t, 1, h.store.Len())
	require.Len(t, h.notifier.sent, 1)
	assert.NotEmpty(t, h.notifier.sent[0].ID)
	assert.Equal(t, int64(1), h.metrics.ArticlesSaved)
	assert.Equal(t, int64(1), h.metrics.NotificationsSent)
}

func TestCrawlAndExtractDeduplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, "https://site.example/")
	h.resolver.adapters["https://site.example/"].articles = []news.Article{
		{Title: "One", Source: "https://site.example/1"},
		{Title: "Two", Source: "https://site.example/2"},
	}

	first, err := h.sched.CrawlAndExtract(ctx, "https://site.example/")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Saved)

	second, err := h.sched.CrawlAndExtract(ctx, "https://site.example/")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Saved)
	assert.Equal(t, 2, second.Duplicates)
	assert.Len(t, h.notifier.sent, 2)
}

func TestCrawlAndExtractNotifyFailureIsLogged(t *testing.T) {
	h := newHarness(t, Config{}, "https://site.example/")
	h.resolver.adapters["https://site.example/"].articles = []news.Article{{Title: "One", Source: "https://site.example/1"}}
	h.notifier.err = errors.New("telegram down")

	res, err := h.sched.CrawlAndExtract(context.Background(), "https://site.example/")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, int64(1), h.metrics.NotifyFailures)
}

func TestCrawlAndExtractPropagatesDiscoveryFailure(t *testing.T) {
	h := newHarness(t, Config{}, "https://site.example/")
	h.resolver.adapters["https://site.example/"].err = errors.New("listing unavailable")

	_, err := h.sched.CrawlAndExtract(context.Background(), "https://site.example/")
	assert.Error(t, err)
	assert.Equal(t, int64(1), h.metrics.CrawlFailures)
}

func TestFailingSourceDoesNotAffectOthers(t *testing.T) {
	const x, y = "https://x.example/", "https://y.example/"
	h := newHarness(t, Config{}, x, y)
	h.resolver.adapters[x].err = errors.New("listing unavailable")
	h.resolver.adapters[y].articles = []news.Article{
		{Title: "Lantern festival", Source: "https://y.example/1", Date: "2024-11-15"},
	}

	h.sched.RefreshSources(context.Background())
	h.sched.Stop()

	assert.Equal(t, []string{x, y}, h.sched.Jobs())
	assert.Equal(t, 1, h.store.Len())
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "Lantern festival", h.notifier.sent[0].Title)
	assert.Equal(t, int64(1), h.metrics.CrawlFailures)
	assert.Equal(t, map[string]string{x: "listing unavailable"}, h.metrics.Failing())
}

func TestHealthTracksEachSource(t *testing.T) {
	ctx := context.Background()
	const x, y = "https://x.example/", "https://y.example/"
	h := newHarness(t, Config{}, x, y)
	h.resolver.adapters[x].err = errors.New("listing unavailable")

	_, err := h.sched.CrawlAndExtract(ctx, x)
	require.Error(t, err)
	assert.False(t, h.metrics.Healthy())

	// Another source succeeding does not hide the broken one.
	_, err = h.sched.CrawlAndExtract(ctx, y)
	require.NoError(t, err)
	assert.False(t, h.metrics.Healthy())

	h.resolver.adapters[x].err = nil
	_, err = h.sched.CrawlAndExtract(ctx, x)
	require.NoError(t, err)
	assert.True(t, h.metrics.Healthy())
}

func TestUnscheduleClearsSourceHealth(t *testing.T) {
	const x = "https://x.example/"
	h := newHarness(t, Config{}, x)
	h.resolver.adapters[x].err = errors.New("gone")

	require.NoError(t, h.sched.ScheduleNewsCrawling(x))
	_, err := h.sched.CrawlAndExtract(context.Background(), x)
	require.Error(t, err)
	require.False(t, h.metrics.Healthy())

	h.sched.Unschedule(x)
	// The immediate run fired by scheduling may finish after the removal.
	h.sched.Stop()
	assert.True(t, h.metrics.Healthy())
}

func TestRegistryRecoveryRestoresHealth(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{}, "https://a.example/")

	h.sources.SetErr(errors.New("connection refused"))
	h.sched.RefreshSources(ctx)
	assert.False(t, h.metrics.Healthy())
	assert.Contains(t, h.metrics.Failing(), metrics.ComponentRegistry)

	h.sources.SetErr(nil)
	h.sched.RefreshSources(ctx)
	assert.True(t, h.metrics.Healthy())
	assert.Equal(t, []string{"https://a.example/"}, h.sched.Jobs())
}

func TestCrawlAndExtractUnknownSource(t *testing.T) {
	ctx := context.Background()

	t.Run("fallback enabled", func(t *testing.T) {
		h := newHarness(t, Config{GenericFallback: true})
		h.resolver.generic.articles = []news.Article{{Title: "Generic", Source: "https://unknown.example/a"}}

		res, err := h.sched.CrawlAndExtract(ctx, "https://unknown.example/")
		require.NoError(t, err)
		assert.Equal(t, "generic", res.Adapter)
		assert.Equal(t, 1, res.Saved)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		h := newHarness(t, Config{GenericFallback: false})

		res, err := h.sched.CrawlAndExtract(ctx, "https://unknown.example/")
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Zero(t, h.resolver.generic.Calls())
		assert.Zero(t, h.store.Len())
	})
}

func TestOverlappingRunsAreCoalesced(t *testing.T) {
	h := newHarness(t, Config{MaxInstances: 1}, "https://slow.example/")
	slow := h.resolver.adapters["https://slow.example/"]
	slow.block = make(chan struct{})

	require.NoError(t, h.sched.ScheduleNewsCrawling("https://slow.example/"))
	h.sched.runJob("https://slow.example/")
	h.sched.runJob("https://slow.example/")

	close(slow.block)
	h.sched.Stop()

	assert.Equal(t, 1, slow.Calls())
	assert.Equal(t, int64(2), h.metrics.CrawlsSkipped)
}

func TestUnscheduleKeepsRunningCrawl(t *testing.T) {
	h := newHarness(t, Config{}, "https://slow.example/")
	slow := h.resolver.adapters["https://slow.example/"]
	slow.block = make(chan struct{})
	slow.articles = []news.Article{{Title: "Late", Source: "https://slow.example/1"}}

	require.NoError(t, h.sched.ScheduleNewsCrawling("https://slow.example/"))
	h.sched.Unschedule("https://slow.example/")
	assert.Empty(t, h.sched.Jobs())

	close(slow.block)
	h.sched.Stop()
	assert.Equal(t, 1, h.store.Len())
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	h := newHarness(t, Config{}, "https://a.example/")
	require.NoError(t, h.sched.ScheduleNewsCrawling("https://a.example/"))
	first, _ := h.sched.EntryID("https://a.example/")

	require.NoError(t, h.sched.ScheduleNewsCrawling("https://a.example/"))
	second, _ := h.sched.EntryID("https://a.example/")

	assert.NotEqual(t, first, second)
	assert.Len(t, h.sched.Jobs(), 1)

	_, ok := h.sched.NextRun("https://a.example/")
	assert.True(t, ok)
	_, ok = h.sched.NextRun("https://missing.example/")
	assert.False(t, ok)
}

func TestStartCrawlingSchedulesActiveSources(t *testing.T) {
	h := newHarness(t, Config{CrawlInterval: time.Hour, RefreshInterval: time.Hour}, "https://a.example/")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.sched.StartCrawling(ctx))
	assert.Equal(t, []string{"https://a.example/"}, h.sched.Jobs())

	h.sched.Stop()
	assert.ErrorIs(t, h.sched.StartCrawling(ctx), ErrStopped)
	assert.Equal(t, 1, h.resolver.adapters["https://a.example/"].Calls())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{MaxInstances: 50}.withDefaults()
	assert.Equal(t, DefaultCrawlInterval, cfg.CrawlInterval)
	assert.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	assert.Equal(t, 6, cfg.MaxInstances)
}
