package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/newschannel/internal/assistant"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/storage"
)

const (
	defaultLatest = 10
	maxLatest     = 100
)

type addSourceRequest struct {
	Link string `json:"link" binding:"required"`
}

type generatePostRequest struct {
	Variation int `json:"variation"`
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.deps.Sources.ListSources(c.Request.Context())
	if err != nil {
		s.log.Error("failed to list sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}
	if sources == nil {
		sources = []news.Source{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

func (s *Server) addSource(c *gin.Context) {
	var req addSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	link := strings.TrimSpace(req.Link)
	if u, err := url.ParseRequestURI(link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link must be an absolute http(s) URL"})
		return
	}

	src, err := s.deps.Sources.AddSource(c.Request.Context(), link)
	if err != nil {
		s.log.Error("failed to add source", "link", link, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add source"})
		return
	}
	s.log.Info("source added", "id", src.ID, "link", src.Link)
	s.deps.Scheduler.RefreshSources(c.Request.Context())

	c.JSON(http.StatusCreated, src)
}

func (s *Server) disableSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	if err := s.deps.Sources.DisableSource(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		s.log.Error("failed to disable source", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disable source"})
		return
	}
	s.log.Info("source disabled", "id", id)
	s.deps.Scheduler.RefreshSources(c.Request.Context())

	c.Status(http.StatusNoContent)
}

func (s *Server) refreshSources(c *gin.Context) {
	s.deps.Scheduler.RefreshSources(c.Request.Context())
	jobs := s.deps.Scheduler.Jobs()
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) latestArticles(c *gin.Context) {
	n := defaultLatest
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		n = min(parsed, maxLatest)
	}

	articles, err := s.deps.Articles.Latest(c.Request.Context(), n)
	if err != nil {
		s.log.Error("failed to load latest articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load articles"})
		return
	}
	if articles == nil {
		articles = []news.Article{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

func (s *Server) getArticle(c *gin.Context) {
	a, err := s.deps.Articles.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		s.log.Error("failed to load article", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load article"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) generatePost(c *gin.Context) {
	if s.deps.Posts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Post generation is disabled"})
		return
	}

	req := generatePostRequest{Variation: assistant.VariationRegenerate}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	id := c.Param("id")
	idx, a, err := s.deps.Posts.Generate(c.Request.Context(), id, req.Variation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
			return
		}
		s.log.Error("failed to generate post", "id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate post", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"index":   idx,
		"post":    a.Posts[idx],
		"preview": news.FormatPost(*a, idx),
	})
}
