// Package scheduler keeps one periodic crawl job per active source and
// reconciles that job set against the source registry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deusflow/newschannel/internal/logger"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/scraper"
	"github.com/deusflow/newschannel/internal/storage"
)

const (
	DefaultCrawlInterval   = 6 * time.Hour
	DefaultRefreshInterval = time.Hour
	DefaultMaxInstances    = 1
	maxInstancesLimit      = 6
)

// ErrStopped is returned by StartCrawling after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Notifier announces a newly stored article.
type Notifier interface {
	Notify(ctx context.Context, article news.Article) error
}

// Resolver maps a source URL to its adapter. *scraper.Registry implements it.
type Resolver interface {
	Resolve(source string) (scraper.Adapter, error)
	Generic(source string) scraper.Adapter
}

type Config struct {
	CrawlInterval   time.Duration
	RefreshInterval time.Duration
	// MaxInstances caps concurrent runs of one source. Extra runs are skipped.
	MaxInstances    int
	GenericFallback bool
}

func (c Config) withDefaults() Config {
	if c.CrawlInterval <= 0 {
		c.CrawlInterval = DefaultCrawlInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.MaxInstances <= 0 {
		c.MaxInstances = DefaultMaxInstances
	}
	if c.MaxInstances > maxInstancesLimit {
		c.MaxInstances = maxInstancesLimit
	}
	return c
}

type Options struct {
	Config   Config
	Sources  storage.SourceRegistry
	Adapters Resolver
	Store    storage.ArticleStore
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Result summarizes one CrawlAndExtract call.
type Result struct {
	Source     string `json:"source"`
	Adapter    string `json:"adapter"`
	Extracted  int    `json:"extracted"`
	Saved      int    `json:"saved"`
	Duplicates int    `json:"duplicates"`
	Skipped    bool   `json:"skipped"`
}

// State is the scheduler's view of which sources have a job and how many
// runs of each are in flight. Guarded by Scheduler.mu.
type State struct {
	entries map[string]cron.EntryID
	running map[string]int
}

func newState() State {
	return State{
		entries: make(map[string]cron.EntryID),
		running: make(map[string]int),
	}
}

// Jobs returns the scheduled source URLs, sorted.
func (s State) Jobs() []string {
	out := make([]string, 0, len(s.entries))
	for u := range s.entries {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

type Scheduler struct {
	cfg      Config
	cron     *cron.Cron
	sources  storage.SourceRegistry
	adapters Resolver
	store    storage.ArticleStore
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	state     State
	ctx       context.Context
	started   bool
	stopped   bool
	refreshID cron.EntryID
	wg        sync.WaitGroup
}

func New(opts Options) *Scheduler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}
	cl := logger.CronAdapter{L: log}
	return &Scheduler{
		cfg:      opts.Config.withDefaults(),
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		sources:  opts.Sources,
		adapters: opts.Adapters,
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      log,
		metrics:  m,
		state:    newState(),
		ctx:      context.Background(),
	}
}

// StartCrawling starts the cron loop, registers the periodic reconciliation
// and runs one reconciliation right away.
func (s *Scheduler) StartCrawling(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx = ctx
	id, err := s.cron.AddFunc(every(s.cfg.RefreshInterval), func() {
		s.RefreshSources(s.runContext())
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule source refresh: %w", err)
	}
	s.refreshID = id
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("crawl scheduler started",
		"crawl_interval", s.cfg.CrawlInterval,
		"refresh_interval", s.cfg.RefreshInterval,
		"max_instances", s.cfg.MaxInstances)

	s.RefreshSources(ctx)
	return nil
}

// RefreshSources schedules newly active sources and unschedules the ones that
// left the registry. A registry failure leaves the current jobs untouched.
func (s *Scheduler) RefreshSources(ctx context.Context) {
	active, err := s.sources.ActiveSources(ctx)
	if err != nil {
		s.log.Error("failed to load active sources, keeping current jobs", "error", err)
		s.metrics.SetError(metrics.ComponentRegistry, err.Error())
		return
	}
	s.metrics.ClearError(metrics.ComponentRegistry)
	s.metrics.IncrementReconciliations()

	desired := make(map[string]struct{}, len(active))
	for _, src := range active {
		desired[src.Link] = struct{}{}
	}

	s.mu.Lock()
	var added, removed []string
	for u := range desired {
		if _, ok := s.state.entries[u]; !ok {
			added = append(added, u)
		}
	}
	for u := range s.state.entries {
		if _, ok := desired[u]; !ok {
			removed = append(removed, u)
		}
	}
	s.mu.Unlock()

	sort.Strings(added)
	sort.Strings(removed)
	for _, u := range removed {
		s.Unschedule(u)
	}
	for _, u := range added {
		if err := s.ScheduleNewsCrawling(u); err != nil {
			s.log.Error("failed to schedule source", "url", u, "error", err)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		s.log.Info("sources reconciled", "added", len(added), "removed", len(removed), "jobs", len(desired))
	} else {
		s.log.Debug("sources unchanged", "jobs", len(desired))
	}
}

// ScheduleNewsCrawling (re)creates the periodic job for url and fires one
// run immediately in the background.
func (s *Scheduler) ScheduleNewsCrawling(url string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if old, ok := s.state.entries[url]; ok {
		s.cron.Remove(old)
		delete(s.state.entries, url)
	}
	id, err := s.cron.AddFunc(every(s.cfg.CrawlInterval), func() { s.runJob(url) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to add crawl job: %w", err)
	}
	s.state.entries[url] = id
	immediate := s.acquireLocked(url)
	s.mu.Unlock()

	s.log.Info("crawl job scheduled", "url", url, "entry_id", id, "interval", s.cfg.CrawlInterval)
	if immediate {
		go s.run(url)
	}
	return nil
}

// Unschedule removes the job for url. A run already in progress finishes.
func (s *Scheduler) Unschedule(url string) {
	s.mu.Lock()
	id, ok := s.state.entries[url]
	if ok {
		s.cron.Remove(id)
		delete(s.state.entries, url)
	}
	s.mu.Unlock()

	if ok {
		// A source that left the registry no longer counts against health.
		s.metrics.ClearError(url)
		s.log.Info("crawl job removed", "url", url, "entry_id", id)
	}
}

// Jobs returns the scheduled source URLs, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Jobs()
}

// EntryID returns the cron entry backing url.
func (s *Scheduler) EntryID(url string) (cron.EntryID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.state.entries[url]
	return id, ok
}

// NextRun reports when the job for url fires next.
func (s *Scheduler) NextRun(url string) (time.Time, bool) {
	id, ok := s.EntryID(url)
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Stop halts the cron loop and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("crawl scheduler stopped")
}

// CrawlAndExtract runs the adapter for url once, stores every article and
// notifies about the ones that were new.
func (s *Scheduler) CrawlAndExtract(ctx context.Context, url string) (Result, error) {
	res := Result{Source: url}

	adapter, err := s.adapters.Resolve(url)
	switch {
	case errors.Is(err, scraper.ErrUnknownSource):
		if !s.cfg.GenericFallback {
			s.log.Warn("no adapter for source, skipping", "url", url)
			res.Skipped = true
			return res, nil
		}
		s.log.Info("no adapter for source, using generic fallback", "url", url)
		adapter = s.adapters.Generic(url)
	case err != nil:
		return res, err
	}
	res.Adapter = adapter.Name()

	start := time.Now()
	s.metrics.IncrementCrawlRuns()
	articles, err := adapter.Crawl(ctx)
	s.metrics.RecordCrawlTime(time.Since(start))
	if err != nil {
		s.metrics.IncrementCrawlFailures()
		s.metrics.SetError(url, err.Error())
		return res, fmt.Errorf("crawl %s: %w", url, err)
	}
	res.Extracted = len(articles)

	for _, a := range articles {
		saved, err := s.store.Save(ctx, a)
		if err != nil {
			s.log.Error("failed to save article", "url", a.Source, "error", err)
			continue
		}
		if saved == nil {
			res.Duplicates++
			s.metrics.IncrementDuplicatesFiltered()
			continue
		}
		res.Saved++
		s.metrics.IncrementArticlesSaved()
		s.notify(ctx, *saved)
	}

	s.metrics.ClearError(url)
	s.metrics.SetLastRun()
	s.log.Info("crawl finished",
		"url", url,
		"adapter", res.Adapter,
		"extracted", res.Extracted,
		"saved", res.Saved,
		"duplicates", res.Duplicates,
		"duration", time.Since(start))
	return res, nil
}

func (s *Scheduler) notify(ctx context.Context, a news.Article) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, a); err != nil {
		s.metrics.IncrementNotifyFailures()
		s.log.Error("failed to notify about article", "id", a.ID, "url", a.Source, "error", err)
		return
	}
	s.metrics.IncrementNotificationsSent()
}

func (s *Scheduler) runJob(url string) {
	s.mu.Lock()
	ok := s.acquireLocked(url)
	s.mu.Unlock()
	if ok {
		s.run(url)
	}
}

func (s *Scheduler) run(url string) {
	defer s.release(url)
	if _, err := s.CrawlAndExtract(s.runContext(), url); err != nil {
		s.log.Error("crawl failed", "url", url, "error", err)
		if _, scheduled := s.EntryID(url); !scheduled {
			s.metrics.ClearError(url)
		}
	}
}

// acquireLocked reserves a run slot for url. s.mu must be held.
func (s *Scheduler) acquireLocked(url string) bool {
	if s.stopped {
		return false
	}
	if s.state.running[url] >= s.cfg.MaxInstances {
		s.metrics.IncrementCrawlsSkipped()
		s.log.Warn("previous crawl still running, skipping", "url", url, "max_instances", s.cfg.MaxInstances)
		return false
	}
	s.state.running[url]++
	s.wg.Add(1)
	return true
}

func (s *Scheduler) release(url string) {
	s.mu.Lock()
	if s.state.running[url]--; s.state.running[url] <= 0 {
		delete(s.state.running, url)
	}
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
