package scraper

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newschannel/internal/rss"
)

const genericMaxLinks = 100

var (
	nonArticleSegments = []string{
		"/tag/", "/tags/", "/category/", "/categories/", "/author/", "/page/",
		"/search", "/login", "/register", "/account", "/contact", "/about",
		"/privacy", "/terms", "/subscribe", "/wp-admin", "/wp-login",
	}
	nonArticleExt = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
		".pdf": true, ".zip": true, ".mp4": true, ".mp3": true, ".css": true, ".js": true,
	}
	digitRun = regexp.MustCompile(`\d{3,}`)
)

// articleLike guesses whether a same-host URL points at an article rather than
// a section, tag or utility page.
func articleLike(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if p == "" || p == "/" {
		return false
	}
	for _, seg := range nonArticleSegments {
		if strings.Contains(p, seg) {
			return false
		}
	}
	if nonArticleExt[path.Ext(p)] {
		return false
	}

	trimmed := strings.Trim(p, "/")
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]
	switch {
	case strings.HasSuffix(last, ".html"), strings.HasSuffix(last, ".htm"), strings.HasSuffix(last, ".php"):
		return true
	case digitRun.MatchString(trimmed):
		return true
	case strings.Count(last, "-") >= 2:
		return true
	}
	return false
}

// genericSite scrapes any listing page for same-host, article-looking anchors.
func genericSite(source string) Site {
	return Site{
		Name:     "generic",
		Filters:  []LinkFilter{SameHost(source), articleLike, notSelf(source)},
		MaxLinks: genericMaxLinks,
		Links: func(doc *goquery.Document, _ string) []string {
			return attrs(doc, "a[href]", "href")
		},
	}
}

func notSelf(source string) LinkFilter {
	self := normalize(source)
	return func(link string) bool {
		return strings.TrimSuffix(link, "/") != strings.TrimSuffix(self, "/")
	}
}

// NewGeneric builds the fallback adapter for sources no site claims.
func NewGeneric(source string, deps Deps) *Crawler {
	return NewCrawler(genericSite(source), source, deps)
}

// NewFeed builds an adapter whose links come from an RSS or Atom feed.
func NewFeed(source string, deps Deps) *Crawler {
	site := Site{
		Name:    "feed",
		Filters: []LinkFilter{HTTPOnly},
		Discover: func(ctx context.Context, g Getter, src string) ([]string, error) {
			return rss.Links(ctx, g, src)
		},
	}
	return NewCrawler(site, source, deps)
}
