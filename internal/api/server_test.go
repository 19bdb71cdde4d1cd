package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newschannel/internal/logger"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/news"
	"github.com/deusflow/newschannel/internal/storage"
)

type fakeScheduler struct {
	mu        sync.Mutex
	sources   storage.SourceRegistry
	jobs      []string
	refreshes int
}

func (f *fakeScheduler) Jobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.jobs...)
}

func (f *fakeScheduler) NextRun(string) (time.Time, bool) {
	return time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), true
}

func (f *fakeScheduler) RefreshSources(ctx context.Context) {
	active, _ := f.sources.ActiveSources(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.jobs = f.jobs[:0]
	for _, s := range active {
		f.jobs = append(f.jobs, s.Link)
	}
}

type fakePosts struct {
	store storage.ArticleStore
	err   error
}

func (f *fakePosts) Generate(ctx context.Context, id string, variation int) (int, *news.Article, error) {
	if f.err != nil {
		return -1, nil, f.err
	}
	return f.store.AppendPost(ctx, id, news.Post{SocialPost: "variation " + string(rune('0'+variation))})
}

type fixture struct {
	router   http.Handler
	sched    *fakeScheduler
	sources  *storage.MemorySources
	articles *storage.MemoryArticles
	metrics  *metrics.Metrics
	posts    *fakePosts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sources:  storage.NewMemorySources("https://a.example/"),
		articles: storage.NewMemoryArticles(""),
		metrics:  metrics.New(),
	}
	f.sched = &fakeScheduler{sources: f.sources}
	f.posts = &fakePosts{store: f.articles}
	f.router = NewRouter(Deps{
		Scheduler: f.sched,
		Sources:   f.sources,
		Articles:  f.articles,
		Posts:     f.posts,
		Metrics:   f.metrics,
		Stats: map[string]func() map[string]interface{}{
			"quota": func() map[string]interface{} { return map[string]interface{}{"openai_used": 0} },
		},
		Logger: logger.Discard(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	f.metrics.SetError("https://a.example/", "listing down")
	w = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "listing down", decode(t, w)["last_error"])
}

func TestMetricsIncludesExtraStats(t *testing.T) {
	f := newFixture(t)
	f.metrics.IncrementArticlesSaved()

	body := decode(t, f.do(t, http.MethodGet, "/metrics", ""))
	crawler := body["crawler"].(map[string]any)
	assert.EqualValues(t, 1, crawler["articles_saved"])
	assert.Contains(t, body, "quota")
}

func TestSourcesLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/sources", `{"link":"https://b.example/news"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, "https://b.example/news", created["link"])
	assert.Equal(t, []string{"https://a.example/", "https://b.example/news"}, f.sched.Jobs())

	list := decode(t, f.do(t, http.MethodGet, "/sources", ""))
	assert.EqualValues(t, 2, list["count"])

	w = f.do(t, http.MethodDelete, "/sources/1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"https://b.example/news"}, f.sched.Jobs())

	w = f.do(t, http.MethodDelete, "/sources/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/sources/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddSourceValidation(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{}`, `{"link":"not a url"}`, `{"link":"ftp://x.example/"}`, `nope`} {
		w := f.do(t, http.MethodPost, "/sources", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Zero(t, f.sched.refreshes)
}

func TestJobsAndRefresh(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/sources/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, f.do(t, http.MethodGet, "/jobs", ""))
	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 1)
	job := jobs[0].(map[string]any)
	assert.Equal(t, "https://a.example/", job["source"])
	assert.Equal(t, "2024-01-01T06:00:00Z", job["next_run"])
}

func TestArticlesEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, err := f.articles.Save(ctx, news.Article{Title: "old", Source: "https://a.example/1", Date: "2024-01-01"})
	require.NoError(t, err)
	_, err = f.articles.Save(ctx, news.Article{Title: "new", Source: "https://a.example/2", Date: "2024-02-01"})
	require.NoError(t, err)

	latest := decode(t, f.do(t, http.MethodGet, "/articles/latest?limit=1", ""))
	items := latest["articles"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].(map[string]any)["title"])

	w := f.do(t, http.MethodGet, "/articles/latest?limit=-2", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	got := decode(t, f.do(t, http.MethodGet, "/articles/"+old.ID, ""))
	assert.Equal(t, "old", got["title"])

	w = f.do(t, http.MethodGet, "/articles/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGeneratePost(t *testing.T) {
	f := newFixture(t)
	a, err := f.articles.Save(context.Background(), news.Article{Title: "t", Source: "https://a.example/1"})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/articles/"+a.ID+"/posts", `{"variation":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["index"])
	assert.Equal(t, "variation 2", body["post"].(map[string]any)["social_post"])

	w = f.do(t, http.MethodPost, "/articles/"+a.ID+"/posts", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["index"])

	w = f.do(t, http.MethodPost, "/articles/missing/posts", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.posts.err = errors.New("llm down")
	w = f.do(t, http.MethodPost, "/articles/"+a.ID+"/posts", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
