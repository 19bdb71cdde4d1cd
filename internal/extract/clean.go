package extract

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var junkIndicators = []string{
	"cookie", "gdpr", "subscribe to our newsletter", "sign up for", "all rights reserved",
	"share this article", "read more:", "follow us on", "advertisement",
	"подписывайтесь", "читайте также", "реклама",
}

func unescape(s string) string {
	return html.UnescapeString(s)
}

// genericContent collects paragraph text with a cascade of common article selectors.
func genericContent(doc *goquery.Document) string {
	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		".text p",
		"p",
	}

	var paragraphs []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

func genericTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		".article-title",
		".headline",
		".entry-title",
		"title",
	}

	for _, selector := range selectors {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}

	return ""
}

// cleanText drops boilerplate lines and re-flows the rest into paragraphs.
func cleanText(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var paragraphs []string
	var current strings.Builder
	flush := func() {
		p := strings.Join(strings.Fields(current.String()), " ")
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if isJunk(line) {
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
		if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?") {
			flush()
		}
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

func isJunk(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
