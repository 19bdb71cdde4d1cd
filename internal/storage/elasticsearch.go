package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/deusflow/newschannel/internal/news"
)

const (
	DefaultIndex        = "news"
	defaultIndexTimeout = 10 * time.Second
	appendAttempts      = 5
)

var errVersionConflict = errors.New("version conflict")

// articleMapping keeps source and date as keywords so dedup is an exact term
// match and date sorts lexically.
var articleMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"title":           map[string]any{"type": "text"},
			"text":            map[string]any{"type": "text"},
			"raw_text":        map[string]any{"type": "text", "index": false},
			"excerpt":         map[string]any{"type": "text"},
			"source":          map[string]any{"type": "keyword"},
			"source_hostname": map[string]any{"type": "keyword"},
			"hostname":        map[string]any{"type": "keyword"},
			"date":            map[string]any{"type": "keyword"},
			"fingerprint":     map[string]any{"type": "keyword"},
			"language":        map[string]any{"type": "keyword"},
			"images_url":      map[string]any{"type": "keyword"},
			"posts":           map[string]any{"type": "object", "enabled": false},
		},
	},
}

// Elasticsearch is the production ArticleStore.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
	log    *slog.Logger
}

var _ ArticleStore = (*Elasticsearch)(nil)

type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

func NewElasticsearch(cfg ElasticsearchConfig, log *slog.Logger) (*Elasticsearch, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if log == nil {
		log = slog.Default()
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Elasticsearch{client: client, index: cfg.Index, log: log}, nil
}

// EnsureIndex creates the index with the article mapping when it is missing.
func (s *Elasticsearch) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	closeBody(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(mustJSON(articleMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("elasticsearch error creating index: %s", res.String())
	}
	s.log.Info("created elasticsearch index", "index", s.index)
	return nil
}

func (s *Elasticsearch) Save(ctx context.Context, a news.Article) (*news.Article, error) {
	if a.Source != "" {
		exists, err := s.existsBySource(ctx, a.Source)
		if err != nil {
			return nil, err
		}
		if exists {
			s.log.Debug("article already stored", "source", a.Source)
			return nil, nil
		}
	}

	a.ID = uuid.NewString()
	if err := s.indexArticle(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Elasticsearch) Update(ctx context.Context, a news.Article) (*news.Article, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("update without id: %w", ErrNotFound)
	}
	if _, err := s.GetByID(ctx, a.ID); err != nil {
		return nil, err
	}
	if err := s.indexArticle(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AppendPost re-reads the article and writes it back guarded by the
// document's sequence number, retrying when another writer got there first.
func (s *Elasticsearch) AppendPost(ctx context.Context, id string, p news.Post) (int, *news.Article, error) {
	for attempt := 1; ; attempt++ {
		a, v, err := s.getVersioned(ctx, id)
		if err != nil {
			return -1, nil, err
		}
		idx := a.AppendPost(p)
		err = s.indexArticle(ctx, *a,
			s.client.Index.WithIfSeqNo(v.seqNo),
			s.client.Index.WithIfPrimaryTerm(v.primaryTerm),
		)
		if err == nil {
			return idx, a, nil
		}
		if !errors.Is(err, errVersionConflict) || attempt == appendAttempts {
			return -1, nil, err
		}
		s.log.Debug("article changed concurrently, retrying", "id", id, "attempt", attempt)
	}
}

func (s *Elasticsearch) indexArticle(ctx context.Context, a news.Article, opts ...func(*esapi.IndexRequest)) error {
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	doc := a
	doc.ID = ""
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	opts = append([]func(*esapi.IndexRequest){
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(a.ID),
		s.client.Index.WithRefresh("true"),
	}, opts...)
	res, err := s.client.Index(s.index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("failed to index article: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusConflict {
		return fmt.Errorf("article %s: %w", a.ID, errVersionConflict)
	}

	if res.IsError() {
		s.log.Error("elasticsearch returned error response", "error", res.String(), "index", s.index, "id", a.ID)
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

func (s *Elasticsearch) GetByID(ctx context.Context, id string) (*news.Article, error) {
	a, _, err := s.getVersioned(ctx, id)
	return a, err
}

type docVersion struct {
	seqNo       int
	primaryTerm int
}

func (s *Elasticsearch) getVersioned(ctx context.Context, id string) (*news.Article, docVersion, error) {
	res, err := s.client.Get(s.index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, docVersion{}, fmt.Errorf("error getting article: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, docVersion{}, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	if res.IsError() {
		return nil, docVersion{}, fmt.Errorf("error getting article: %s", res.String())
	}

	var doc struct {
		ID          string       `json:"_id"`
		Found       bool         `json:"found"`
		SeqNo       int          `json:"_seq_no"`
		PrimaryTerm int          `json:"_primary_term"`
		Source      news.Article `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, docVersion{}, fmt.Errorf("error decoding article: %w", err)
	}
	if !doc.Found {
		return nil, docVersion{}, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	doc.Source.ID = doc.ID
	return &doc.Source, docVersion{seqNo: doc.SeqNo, primaryTerm: doc.PrimaryTerm}, nil
}

func (s *Elasticsearch) Latest(ctx context.Context, n int) ([]news.Article, error) {
	if n <= 0 {
		n = 10
	}
	return s.search(ctx, map[string]any{
		"size":  n,
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []any{map[string]any{"date": map[string]any{"order": "desc", "unmapped_type": "keyword"}}},
	})
}

func (s *Elasticsearch) existsBySource(ctx context.Context, source string) (bool, error) {
	hits, err := s.search(ctx, map[string]any{
		"size":  1,
		"query": map[string]any{"term": map[string]any{"source": source}},
	})
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string       `json:"_id"`
			Source news.Article `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Elasticsearch) search(ctx context.Context, query map[string]any) ([]news.Article, error) {
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(mustJSON(query))),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer closeBody(res)

	// A missing index simply has no articles yet.
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("error decoding search response: %w", err)
	}
	out := make([]news.Article, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		a := h.Source
		a.ID = h.ID
		out = append(out, a)
	}
	return out, nil
}

func closeBody(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	if err := res.Body.Close(); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("failed to close elasticsearch response body", "error", err)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
