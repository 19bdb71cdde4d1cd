package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	CrawlRuns          int64
	CrawlFailures      int64
	CrawlsSkipped      int64
	ArticlesExtracted  int64
	ExtractionFailures int64
	ArticlesSaved      int64
	DuplicatesFiltered int64
	NotificationsSent  int64
	NotifyFailures     int64
	Reconciliations    int64
	PostsGenerated     int64

	// Timings
	LastCrawlTime    time.Duration
	AverageCrawlTime time.Duration
	TotalCrawlTime   time.Duration
	CrawlCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string

	// failing holds the last error of every component (a source URL or
	// ComponentRegistry) whose most recent run failed.
	failing map[string]string
}

// ComponentRegistry is the health key of source reconciliation.
const ComponentRegistry = "registry"

var Global = New()

func New() *Metrics {
	return &Metrics{failing: make(map[string]string)}
}

func (m *Metrics) add(field *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field++
}

func (m *Metrics) IncrementCrawlRuns()          { m.add(&m.CrawlRuns) }
func (m *Metrics) IncrementCrawlFailures()      { m.add(&m.CrawlFailures) }
func (m *Metrics) IncrementCrawlsSkipped()      { m.add(&m.CrawlsSkipped) }
func (m *Metrics) IncrementArticlesExtracted()  { m.add(&m.ArticlesExtracted) }
func (m *Metrics) IncrementExtractionFailures() { m.add(&m.ExtractionFailures) }
func (m *Metrics) IncrementArticlesSaved()      { m.add(&m.ArticlesSaved) }
func (m *Metrics) IncrementDuplicatesFiltered() { m.add(&m.DuplicatesFiltered) }
func (m *Metrics) IncrementNotificationsSent()  { m.add(&m.NotificationsSent) }
func (m *Metrics) IncrementNotifyFailures()     { m.add(&m.NotifyFailures) }
func (m *Metrics) IncrementReconciliations()    { m.add(&m.Reconciliations) }
func (m *Metrics) IncrementPostsGenerated()     { m.add(&m.PostsGenerated) }

func (m *Metrics) RecordCrawlTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCrawlTime = duration
	m.TotalCrawlTime += duration
	m.CrawlCount++

	if m.CrawlCount > 0 {
		m.AverageCrawlTime = m.TotalCrawlTime / time.Duration(m.CrawlCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
}

// SetError marks component as failing until ClearError is called for it.
func (m *Metrics) SetError(component, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.failing[component] = err
}

// ClearError records a successful run of component.
func (m *Metrics) ClearError(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failing, component)
}

// Healthy is true when no component's latest run failed.
func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.failing) == 0
}

// Failing returns a copy of the failing components and their last errors.
func (m *Metrics) Failing() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.failing))
	for k, v := range m.failing {
		out[k] = v
	}
	return out
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"crawl_runs":            m.CrawlRuns,
		"crawl_failures":        m.CrawlFailures,
		"crawls_skipped":        m.CrawlsSkipped,
		"articles_extracted":    m.ArticlesExtracted,
		"extraction_failures":   m.ExtractionFailures,
		"articles_saved":        m.ArticlesSaved,
		"duplicates_filtered":   m.DuplicatesFiltered,
		"notifications_sent":    m.NotificationsSent,
		"notify_failures":       m.NotifyFailures,
		"reconciliations":       m.Reconciliations,
		"posts_generated":       m.PostsGenerated,
		"last_crawl_time_ms":    m.LastCrawlTime.Milliseconds(),
		"average_crawl_time_ms": m.AverageCrawlTime.Milliseconds(),
		"last_run_time":         m.LastRunTime.Format(time.RFC3339),
		"last_error_time":       m.LastErrorTime.Format(time.RFC3339),
		"last_error":            m.LastError,
		"is_healthy":            len(m.failing) == 0,
		"failing":               len(m.failing),
	}
}
