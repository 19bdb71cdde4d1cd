package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/deusflow/newschannel/internal/news"
)

// MemorySources implements SourceRegistry and AdminRegistry without a database.
// Used when DATABASE_URL is unset and in tests.
type MemorySources struct {
	mu      sync.RWMutex
	sources []news.Source
	admins  []news.Admin
	nextID  int64

	// Err, when set, is returned by every read. Lets callers simulate an outage.
	Err error
}

var (
	_ SourceRegistry = (*MemorySources)(nil)
	_ AdminRegistry  = (*MemorySources)(nil)
)

func NewMemorySources(links ...string) *MemorySources {
	m := &MemorySources{}
	for _, l := range links {
		_, _ = m.AddSource(context.Background(), l)
	}
	return m
}

func (m *MemorySources) ActiveSources(context.Context) ([]news.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []news.Source
	for _, s := range m.sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemorySources) ListSources(context.Context) ([]news.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]news.Source(nil), m.sources...), nil
}

func (m *MemorySources) AddSource(_ context.Context, link string) (news.Source, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return news.Source{}, errors.New("empty source link")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.sources {
		if m.sources[i].Link == link {
			m.sources[i].IsActive = true
			return m.sources[i], nil
		}
	}
	m.nextID++
	s := news.Source{ID: m.nextID, Link: link, IsActive: true}
	m.sources = append(m.sources, s)
	return s, nil
}

func (m *MemorySources) DisableSource(_ context.Context, id int64) error {
	return m.disable(func(s news.Source) bool { return s.ID == id }, id)
}

func (m *MemorySources) DisableSourceByLink(_ context.Context, link string) error {
	return m.disable(func(s news.Source) bool { return s.Link == link }, link)
}

func (m *MemorySources) disable(match func(news.Source) bool, key any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sources {
		if match(m.sources[i]) {
			m.sources[i].IsActive = false
			return nil
		}
	}
	return fmt.Errorf("source %v: %w", key, ErrNotFound)
}

func (m *MemorySources) ActiveAdmins(context.Context) ([]news.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []news.Admin
	for _, a := range m.admins {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemorySources) AddAdmin(_ context.Context, userID, name string) (news.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.admins {
		if m.admins[i].UserID == userID {
			m.admins[i].Name = name
			m.admins[i].IsActive = true
			return m.admins[i], nil
		}
	}
	a := news.Admin{ID: int64(len(m.admins) + 1), UserID: userID, Name: name, IsActive: true}
	m.admins = append(m.admins, a)
	return a, nil
}

// SetErr swaps the simulated failure.
func (m *MemorySources) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}
