// Package storage persists articles, crawl sources and notification admins.
package storage

import (
	"context"
	"errors"

	"github.com/deusflow/newschannel/internal/news"
)

var ErrNotFound = errors.New("not found")

// ArticleStore keeps extracted articles. Save is the only dedup point: an
// article whose Source is already stored yields (nil, nil).
type ArticleStore interface {
	Save(ctx context.Context, a news.Article) (*news.Article, error)
	GetByID(ctx context.Context, id string) (*news.Article, error)
	Update(ctx context.Context, a news.Article) (*news.Article, error)
	// AppendPost atomically adds p to the stored article and returns the
	// post's index with the updated article.
	AppendPost(ctx context.Context, id string, p news.Post) (int, *news.Article, error)
	// Latest returns up to n articles, newest date first.
	Latest(ctx context.Context, n int) ([]news.Article, error)
}

// SourceRegistry is the list of crawl targets. AddSource is idempotent and
// re-activates a disabled link.
type SourceRegistry interface {
	ActiveSources(ctx context.Context) ([]news.Source, error)
	ListSources(ctx context.Context) ([]news.Source, error)
	AddSource(ctx context.Context, link string) (news.Source, error)
	DisableSource(ctx context.Context, id int64) error
	DisableSourceByLink(ctx context.Context, link string) error
}

type AdminRegistry interface {
	ActiveAdmins(ctx context.Context) ([]news.Admin, error)
	AddAdmin(ctx context.Context, userID, name string) (news.Admin, error)
}
