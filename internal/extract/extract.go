// Package extract turns a downloaded article page into the loosely typed field
// map consumed by news.FromFields.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/deusflow/newschannel/internal/news"
)

// ErrNoContent means neither a title nor body text could be recovered.
var ErrNoContent = errors.New("no extractable content")

// Fields is keyed by the names news.FromFields understands.
type Fields map[string]any

var policyPool = sync.Pool{
	New: func() interface{} {
		return bluemonday.StrictPolicy()
	},
}

// Extract parses html fetched from pageURL.
func Extract(html []byte, pageURL string) (Fields, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, ErrNoContent
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	meta := readMeta(doc)

	f := Fields{
		"source":   pageURL,
		"hostname": strings.TrimPrefix(u.Hostname(), "www."),
	}

	article, rerr := readability.FromReader(bytes.NewReader(html), u)
	if rerr == nil {
		f["title"] = strings.TrimSpace(article.Title)
		f["author"] = strings.TrimSpace(article.Byline)
		f["excerpt"] = strings.TrimSpace(article.Excerpt)
		f["language"] = article.Language
		f["source-hostname"] = article.SiteName
		f["image"] = article.Image
		f["text"] = cleanText(article.TextContent)
		f["raw_text"] = stripMarkup(article.Content)
		if article.PublishedTime != nil {
			f["date"] = article.PublishedTime.Format(time.DateOnly)
		}
	}

	// Selector fallback when readability found no body.
	if str(f["text"]) == "" {
		body := genericContent(doc)
		f["text"] = cleanText(body)
		f["raw_text"] = body
	}
	if str(f["title"]) == "" {
		f["title"] = genericTitle(doc)
	}

	fillFromMeta(f, meta)

	if str(f["title"]) == "" && str(f["text"]) == "" {
		return nil, ErrNoContent
	}

	f["fingerprint"] = news.Fingerprint(str(f["text"]))
	return f, nil
}

func fillFromMeta(f Fields, meta map[string]string) {
	setIfEmpty := func(key string, candidates ...string) {
		if str(f[key]) != "" {
			return
		}
		for _, c := range candidates {
			if v := meta[c]; v != "" {
				f[key] = v
				return
			}
		}
	}

	setIfEmpty("title", "og:title", "twitter:title")
	setIfEmpty("author", "author", "article:author")
	setIfEmpty("excerpt", "og:description", "description")
	setIfEmpty("source-hostname", "og:site_name", "application-name")
	setIfEmpty("image", "og:image", "twitter:image")
	setIfEmpty("categories", "article:section")
	setIfEmpty("tags", "article:tag", "keywords", "news_keywords")
	setIfEmpty("license", "license", "dc.rights")
	setIfEmpty("language", "lang")

	if str(f["date"]) == "" {
		for _, c := range []string{"article:published_time", "date", "pubdate", "og:updated_time"} {
			if d := normalizeDate(meta[c]); d != "" {
				f["date"] = d
				break
			}
		}
	}
}

// readMeta collects <meta> name/property pairs plus the document language.
func readMeta(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}
		// article:tag repeats; keep every value.
		if prev, ok := meta[key]; ok && key == "article:tag" {
			meta[key] = prev + "," + content
			return
		}
		if _, ok := meta[key]; !ok {
			meta[key] = content
		}
	})
	if lang, ok := doc.Find("html").Attr("lang"); ok {
		meta["lang"] = strings.TrimSpace(lang)
	}
	return meta
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z0700",
	time.DateOnly,
	time.RFC1123Z,
	time.RFC1123,
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

func stripMarkup(html string) string {
	policy := policyPool.Get().(*bluemonday.Policy)
	defer policyPool.Put(policy)

	text := policy.Sanitize(strings.NewReplacer("</p>", "</p>\n", "<br>", "\n", "<br/>", "\n").Replace(html))
	return strings.TrimSpace(unescape(text))
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
