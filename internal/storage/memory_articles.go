package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/deusflow/newschannel/internal/news"
)

// MemoryArticles is an ArticleStore kept in memory and, when filePath is set,
// mirrored to a JSON file after every write.
type MemoryArticles struct {
	filePath string
	items    map[string]news.Article
	bySource map[string]string
	order    []string
	mu       sync.RWMutex
}

var _ ArticleStore = (*MemoryArticles)(nil)

func NewMemoryArticles(filePath string) *MemoryArticles {
	return &MemoryArticles{
		filePath: filePath,
		items:    make(map[string]news.Article),
		bySource: make(map[string]string),
	}
}

// Load reads the backing file. A missing or empty file is not an error.
func (m *MemoryArticles) Load() error {
	if m.filePath == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read articles file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []news.Article
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal articles: %w", err)
	}
	for _, a := range items {
		if a.ID == "" {
			continue
		}
		m.put(a)
	}
	return nil
}

func (m *MemoryArticles) put(a news.Article) {
	if _, exists := m.items[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.items[a.ID] = a
	if a.Source != "" {
		m.bySource[a.Source] = a.ID
	}
}

// flush must be called with the lock held.
func (m *MemoryArticles) flush() error {
	if m.filePath == "" {
		return nil
	}
	items := make([]news.Article, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.items[id])
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal articles: %w", err)
	}
	tmp := m.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write articles file: %w", err)
	}
	return os.Rename(tmp, m.filePath)
}

func (m *MemoryArticles) Save(_ context.Context, a news.Article) (*news.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.bySource[a.Source]; dup && a.Source != "" {
		return nil, nil
	}

	a.ID = uuid.NewString()
	m.put(a)
	if err := m.flush(); err != nil {
		delete(m.items, a.ID)
		if a.Source != "" {
			delete(m.bySource, a.Source)
		}
		m.order = m.order[:len(m.order)-1]
		return nil, err
	}
	return &a, nil
}

func (m *MemoryArticles) GetByID(_ context.Context, id string) (*news.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryArticles) Update(_ context.Context, a news.Article) (*news.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.items[a.ID]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", a.ID, ErrNotFound)
	}
	m.put(a)
	if err := m.flush(); err != nil {
		if a.Source != "" && a.Source != prev.Source {
			delete(m.bySource, a.Source)
		}
		m.put(prev)
		return nil, err
	}
	return &a, nil
}

// AppendPost adds p to the stored article's posts under the store lock.
func (m *MemoryArticles) AppendPost(_ context.Context, id string, p news.Post) (int, *news.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.items[id]
	if !ok {
		return -1, nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	a := prev
	a.Posts = append(append([]news.Post(nil), prev.Posts...), p)
	m.put(a)
	if err := m.flush(); err != nil {
		m.put(prev)
		return -1, nil, err
	}
	return len(a.Posts) - 1, &a, nil
}

func (m *MemoryArticles) Latest(_ context.Context, n int) ([]news.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]news.Article, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	// Dates are ISO strings; lexical order is chronological.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryArticles) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
