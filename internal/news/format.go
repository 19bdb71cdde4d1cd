package news

import (
	"strings"
)

// FormatAnnouncement renders the admin notification for a freshly stored article.
func FormatAnnouncement(a Article) string {
	var b strings.Builder
	b.WriteString("*" + EscapeMarkdown(a.Title) + "*\n")
	if sum := Summary(a); sum != "" {
		b.WriteString("\n" + EscapeMarkdown(sum) + "\n\n")
	}
	b.WriteString("[Read article](" + a.Source + ")")
	return b.String()
}

// FormatPost renders a generated post for preview.
func FormatPost(a Article, idx int) string {
	if idx < 0 || idx >= len(a.Posts) {
		return ""
	}
	p := a.Posts[idx]
	var b strings.Builder
	b.WriteString(p.SocialPost)
	if len(p.ImagesURL) > 0 {
		b.WriteString("\n\n")
		b.WriteString(p.ImagesURL[0])
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "[", "\\[")

// EscapeMarkdown escapes characters that break Telegram legacy Markdown.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Summary returns the excerpt or, failing that, the first sentences of the text.
func Summary(a Article) string {
	if s := strings.TrimSpace(a.Excerpt); s != "" {
		return s
	}
	c := strings.TrimSpace(a.Text)
	if c == "" {
		return ""
	}
	sentences := strings.Split(c, ".")
	var picked []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) < 25 {
			continue
		}
		picked = append(picked, s)
		if len(picked) >= 2 {
			break
		}
	}
	if len(picked) == 0 {
		if len(c) > 160 {
			return c[:160] + "..."
		}
		return c
	}
	return strings.Join(picked, ". ") + "."
}
