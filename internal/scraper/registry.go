package scraper

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/deusflow/newschannel/internal/rss"
)

// Factory builds an adapter for one source URL.
type Factory func(source string, deps Deps) Adapter

// Entry binds a set of domains to an adapter factory.
type Entry struct {
	Name    string
	Domains []string
	Factory Factory
}

// Registry maps source URLs to adapters. It is built once and only read afterwards.
type Registry struct {
	entries []Entry
	deps    Deps
}

// SiteFactory wraps a Site definition as a Factory.
func SiteFactory(site Site) Factory {
	return func(source string, deps Deps) Adapter {
		return NewCrawler(site, source, deps)
	}
}

// Sites lists the built-in site definitions.
func Sites() []Site {
	return []Site{
		bangkokPost,
		clubbingThailand,
		cnnTravel,
		euronews,
		pattayaPeople,
		ria,
		tatNews,
		thePattayaNews,
		thePhuketNews,
		theThaiger,
		tourismThailand,
		tourprom,
	}
}

// NewRegistry returns a registry preloaded with the built-in sites plus extra entries.
func NewRegistry(deps Deps, extra ...Entry) *Registry {
	r := &Registry{deps: deps.withDefaults()}
	for _, s := range Sites() {
		r.entries = append(r.entries, Entry{Name: s.Name, Domains: s.Domains, Factory: SiteFactory(s)})
	}
	r.entries = append(r.entries, extra...)
	return r
}

// NewEmptyRegistry is used when the caller supplies every entry.
func NewEmptyRegistry(deps Deps, entries ...Entry) *Registry {
	return &Registry{deps: deps.withDefaults(), entries: entries}
}

// Resolve returns the adapter for source. Feed URLs on unclaimed hosts use the
// feed adapter. Nothing matching yields ErrUnknownSource.
func (r *Registry) Resolve(source string) (Adapter, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrUnknownSource, source)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if e, ok := r.match(host); ok {
		return e.Factory(source, r.deps), nil
	}
	if rss.LooksLikeFeed(source) {
		return NewFeed(source, r.deps), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
}

// Generic returns the fallback adapter for source.
func (r *Registry) Generic(source string) Adapter {
	return NewGeneric(source, r.deps)
}

// match picks the entry whose domain is the longest match for host.
func (r *Registry) match(host string) (Entry, bool) {
	var best Entry
	bestLen := 0
	for _, e := range r.entries {
		for _, d := range e.Domains {
			d = strings.TrimPrefix(strings.ToLower(d), "www.")
			if (host == d || strings.HasSuffix(host, "."+d)) && len(d) > bestLen {
				best, bestLen = e, len(d)
			}
		}
	}
	return best, bestLen > 0
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
