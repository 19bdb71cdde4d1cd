package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// LinkFilter keeps a discovered URL when it returns true.
type LinkFilter func(link string) bool

// Deny drops links containing any of the fragments.
func Deny(fragments ...string) LinkFilter {
	return func(link string) bool {
		for _, f := range fragments {
			if strings.Contains(link, f) {
				return false
			}
		}
		return true
	}
}

// SameHost keeps links on the host of base (ignoring "www.").
func SameHost(base string) LinkFilter {
	host := hostOf(base)
	return func(link string) bool {
		return hostOf(link) == host
	}
}

// HTTPOnly drops mailto:, javascript: and similar.
func HTTPOnly(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// resolve makes href absolute against base. Fragments are dropped.
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	abs := b.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String()
}

// normalize canonicalizes a link so that trivially different spellings
// de-duplicate.
func normalize(link string) string {
	n, err := purell.NormalizeURLString(link, purell.FlagsSafe|purell.FlagRemoveDotSegments|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveFragment)
	if err != nil {
		return link
	}
	return n
}

// collect resolves, normalizes, filters and de-duplicates hrefs in order.
func collect(base string, hrefs []string, filters []LinkFilter) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		abs := resolve(base, h)
		if abs == "" || !HTTPOnly(abs) {
			continue
		}
		abs = normalize(abs)
		if !keep(abs, filters) {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

func keep(link string, filters []LinkFilter) bool {
	for _, f := range filters {
		if !f(link) {
			return false
		}
	}
	return true
}
