package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/deusflow/newschannel/internal/news"
)

// Postgres holds the crawl sources and notification admins.
type Postgres struct {
	db  *sqlx.DB
	log *slog.Logger
}

var (
	_ SourceRegistry = (*Postgres)(nil)
	_ AdminRegistry  = (*Postgres)(nil)
)

// NewPostgres connects, pings and creates the schema if it is missing.
func NewPostgres(ctx context.Context, connectionString string, log *slog.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := NewPostgresFromDB(db, log)
	if err := p.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	p.log.Info("postgres connected")
	return p, nil
}

func NewPostgresFromDB(db *sqlx.DB, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{db: db, log: log}
}

// initSchema creates the necessary tables if they don't exist
func (p *Postgres) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id SERIAL PRIMARY KEY,
		link TEXT UNIQUE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sources_active ON sources(is_active);

	CREATE TABLE IF NOT EXISTS admins (
		id SERIAL PRIMARY KEY,
		user_id VARCHAR(64) UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *Postgres) ActiveSources(ctx context.Context) ([]news.Source, error) {
	var out []news.Source
	if err := p.db.SelectContext(ctx, &out, `SELECT id, link, is_active FROM sources WHERE is_active = TRUE ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to load active sources: %w", err)
	}
	return out, nil
}

func (p *Postgres) ListSources(ctx context.Context) ([]news.Source, error) {
	var out []news.Source
	if err := p.db.SelectContext(ctx, &out, `SELECT id, link, is_active FROM sources ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return out, nil
}

// AddSource inserts link or re-activates an existing row with the same link.
func (p *Postgres) AddSource(ctx context.Context, link string) (news.Source, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return news.Source{}, errors.New("empty source link")
	}

	var s news.Source
	err := p.db.GetContext(ctx, &s, `
		INSERT INTO sources (link, is_active) VALUES ($1, TRUE)
		ON CONFLICT (link) DO UPDATE SET is_active = TRUE
		RETURNING id, link, is_active`, link)
	if err != nil {
		return news.Source{}, fmt.Errorf("failed to add source: %w", err)
	}
	return s, nil
}

func (p *Postgres) DisableSource(ctx context.Context, id int64) error {
	return p.disable(ctx, `UPDATE sources SET is_active = FALSE WHERE id = $1`, id)
}

func (p *Postgres) DisableSourceByLink(ctx context.Context, link string) error {
	return p.disable(ctx, `UPDATE sources SET is_active = FALSE WHERE link = $1`, link)
}

func (p *Postgres) disable(ctx context.Context, query string, arg any) error {
	res, err := p.db.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to disable source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to disable source: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("source %v: %w", arg, ErrNotFound)
	}
	return nil
}

func (p *Postgres) ActiveAdmins(ctx context.Context) ([]news.Admin, error) {
	var out []news.Admin
	if err := p.db.SelectContext(ctx, &out, `SELECT id, user_id, name, is_active FROM admins WHERE is_active = TRUE ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to load admins: %w", err)
	}
	return out, nil
}

func (p *Postgres) AddAdmin(ctx context.Context, userID, name string) (news.Admin, error) {
	var a news.Admin
	err := p.db.GetContext(ctx, &a, `
		INSERT INTO admins (user_id, name, is_active) VALUES ($1, $2, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, is_active = TRUE
		RETURNING id, user_id, name, is_active`, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return news.Admin{}, fmt.Errorf("admin %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return news.Admin{}, fmt.Errorf("failed to add admin: %w", err)
	}
	return a, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
