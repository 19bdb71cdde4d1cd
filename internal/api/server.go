// Package api exposes the admin HTTP endpoints: health, metrics, crawl jobs,
// sources and articles.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/storage"
)

// Scheduler is the part of scheduler.Scheduler the API drives.
type Scheduler interface {
	Jobs() []string
	NextRun(url string) (time.Time, bool)
	RefreshSources(ctx context.Context)
}

// PostGenerator is implemented by app.PostService.
type PostGenerator interface {
	Generate(ctx context.Context, articleID string, variation int) (int, *news.Article, error)
}

type Deps struct {
	Scheduler Scheduler
	Sources   storage.SourceRegistry
	Articles  storage.ArticleStore
	Posts     PostGenerator
	Metrics   *metrics.Metrics
	// Stats adds extra blocks (e.g. API quotas) to /metrics.
	Stats  map[string]func() map[string]interface{}
	Logger *slog.Logger
}

type Server struct {
	deps Deps
	log  *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, log: deps.Logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginLogger(s.log))
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/metrics", s.metrics)
	router.GET("/jobs", s.jobs)

	sources := router.Group("/sources")
	sources.GET("", s.listSources)
	sources.POST("", s.addSource)
	sources.POST("/refresh", s.refreshSources)
	sources.DELETE("/:id", s.disableSource)

	articles := router.Group("/articles")
	articles.GET("/latest", s.latestArticles)
	articles.GET("/:id", s.getArticle)
	articles.POST("/:id/posts", s.generatePost)

	return router
}

// NewHTTPServer wraps the router with the timeouts used in production.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
}

func (s *Server) health(c *gin.Context) {
	stats := s.deps.Metrics.GetStats()

	status, code := "ok", http.StatusOK
	if !s.deps.Metrics.Healthy() {
		status, code = "error", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}

func (s *Server) metrics(c *gin.Context) {
	out := gin.H{"crawler": s.deps.Metrics.GetStats()}
	for name, fn := range s.deps.Stats {
		out[name] = fn()
	}
	c.JSON(http.StatusOK, out)
}

type jobView struct {
	Source  string     `json:"source"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

func (s *Server) jobs(c *gin.Context) {
	urls := s.deps.Scheduler.Jobs()
	out := make([]jobView, 0, len(urls))
	for _, u := range urls {
		v := jobView{Source: u}
		if next, ok := s.deps.Scheduler.NextRun(u); ok && !next.IsZero() {
			v.NextRun = &next
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out, "count": len(out)})
}

func ginLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
