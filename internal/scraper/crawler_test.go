package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newschannel/internal/fetcher"
	"github.com/deusflow/newschannel/internal/logger"
	"github.com/deusflow/newschannel/internal/metrics"
	"github.com/deusflow/newschannel/internal/retry"
)

func testDeps() Deps {
	return Deps{
		Fetcher: fetcher.New(fetcher.Options{
			Retry:  retry.Policy{MaxAttempts: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond},
			Logger: logger.Discard(),
		}),
		Concurrency: 2,
		Logger:      logger.Discard(),
		Metrics:     metrics.New(),
	}
}

func articlePage(title string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body><article><h1>%s</h1>
	<p>%s happened in Pattaya on Tuesday according to local officials who spoke to reporters.</p>
	<p>Residents said they had expected the change for several months before it was announced.</p>
	<p>More details are expected to be published by the city administration later this week.</p>
	<div class="hero"><img src="/img/hero.jpg"></div>
	</article></body></html>`, title, title, title)
}

// newsSite serves a listing with three story links; /story/2 is broken.
func newsSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
		<a class="story" href="/story/1">one</a>
		<a class="story" href="/story/2">two</a>
		<a class="story" href="/story/3#comments">three</a>
		<a class="story" href="/story/1">one again</a>
		</body></html>`)
	})
	mux.HandleFunc("/story/1", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, articlePage("Story one")) })
	mux.HandleFunc("/story/2", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "gone", http.StatusInternalServerError) })
	mux.HandleFunc("/story/3", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, articlePage("Story three")) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func storySite() Site {
	return Site{
		Name: "test",
		Links: func(doc *goquery.Document, _ string) []string {
			return attrs(doc, "a.story", "href")
		},
		Image: func(doc *goquery.Document) string {
			return firstAttr(doc, ".hero img", "src")
		},
	}
}

func TestDiscoverLinksResolvesAndDeduplicates(t *testing.T) {
	srv := newsSite(t)
	c := NewCrawler(storySite(), srv.URL+"/list", testDeps())

	got, err := c.DiscoverLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/story/1", srv.URL + "/story/2", srv.URL + "/story/3"}, got)
}

func TestCrawlSkipsBrokenLinks(t *testing.T) {
	srv := newsSite(t)
	deps := testDeps()
	c := NewCrawler(storySite(), srv.URL+"/list", deps)

	articles, err := c.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, int64(2), deps.Metrics.ArticlesExtracted)
	assert.Equal(t, int64(1), deps.Metrics.ExtractionFailures)

	assert.Contains(t, articles[0].Title, "Story one")
	assert.Contains(t, articles[1].Title, "Story three")
	assert.Equal(t, srv.URL+"/story/1", articles[0].Source)
	assert.Contains(t, articles[0].ImagesURL, srv.URL+"/img/hero.jpg")
}

func TestCrawlDiscoveryFailureIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewCrawler(storySite(), srv.URL+"/list", testDeps())
	_, err := c.Crawl(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
}

func TestAdaptersAreIsolated(t *testing.T) {
	good := newsSite(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	okAdapter := NewCrawler(storySite(), good.URL+"/list", testDeps())
	brokenAdapter := NewCrawler(storySite(), bad.URL+"/list", testDeps())

	_, err := brokenAdapter.Crawl(context.Background())
	require.Error(t, err)

	articles, err := okAdapter.Crawl(context.Background())
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestExtractArticleWithoutTitleIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div><p>Just a long paragraph of text without any heading or title element in the page.</p></div></body></html>`)
	}))
	defer srv.Close()

	c := NewCrawler(storySite(), srv.URL, testDeps())
	_, err := c.ExtractArticle(context.Background(), srv.URL+"/untitled")
	assert.ErrorIs(t, err, ErrInvalidArticle)
}

func TestFeedAdapter(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
		<item><title>Story one</title><link>%s/story/1</link></item>
		<item><title>Elsewhere</title><link>mailto:desk@example.com</link></item>
		</channel></rss>`, srvURL)
	})
	mux.HandleFunc("/story/1", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, articlePage("Story one")) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := NewFeed(srv.URL+"/feed", testDeps())
	articles, err := c.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "feed", c.Name())
}

func TestGenericAdapterKeepsSameHostArticles(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
		<a href="/">home</a>
		<a href="/tag/beaches">tag</a>
		<a href="/2024/05/01/beach-reopens">story</a>
		<a href="https://other.example.org/2024/05/01/elsewhere">offsite</a>
		<a href="%s/2024/05/02/night-market-opens">absolute story</a>
		</body></html>`, srvURL)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := NewGeneric(srv.URL+"/", testDeps())
	got, err := c.DiscoverLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/2024/05/01/beach-reopens", srv.URL + "/2024/05/02/night-market-opens"}, got)
}

func TestTourismThailandDiscover(t *testing.T) {
	g := &mapGetter{pages: map[string]string{
		tatBreakingNewsAPI + "&timestamp=1000": `{"result":[{"url":"https://www.tourismthailand.org/Articles/breaking-1"}]}`,
		tatAnnouncementAPI + "&timestamp=1000": `{"result":[{"slug":"songkran-2024"}]}`,
	}}
	discover := discoverTourismThailand(func() time.Time { return time.UnixMilli(1000) })

	got, err := discover(context.Background(), g, "https://www.tourismthailand.org/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.tourismthailand.org/Articles/breaking-1",
		"https://www.tourismthailand.org/Articles/songkran-2024",
	}, got)
	assert.Equal(t, "en", g.lastHeaders["Language"])
}

func TestTourismThailandBothEndpointsFailing(t *testing.T) {
	discover := discoverTourismThailand(time.Now)
	_, err := discover(context.Background(), &mapGetter{}, "")
	assert.Error(t, err)
}

type mapGetter struct {
	pages       map[string]string
	lastHeaders map[string]string
}

func (m *mapGetter) Fetch(ctx context.Context, url string, headers map[string]string) (string, error) {
	b, err := m.FetchBytes(ctx, url, headers)
	return string(b), err
}

func (m *mapGetter) FetchBytes(_ context.Context, url string, headers map[string]string) ([]byte, error) {
	m.lastHeaders = headers
	body, ok := m.pages[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}
