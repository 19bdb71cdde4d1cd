// Package fetcher downloads pages for the site adapters with a bounded,
// randomized retry policy.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newschannel/internal/retry"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxBodySize = 10 << 20
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

type Options struct {
	Timeout   time.Duration
	Retry     retry.Policy
	UserAgent string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Fetcher performs GET requests. A zero Options yields the production defaults.
type Fetcher struct {
	client    *http.Client
	policy    retry.Policy
	userAgent string
	log       *slog.Logger
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		policy:    opts.Retry,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
}

// Fetch returns the decoded body of url.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (string, error) {
	body, err := f.FetchBytes(ctx, url, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes returns the raw body of url. Transport failures and non-2xx
// responses are retried; after the last attempt the error wraps retry.ErrExhausted.
func (f *Fetcher) FetchBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, f.policy, func(int) error {
		b, err := f.get(ctx, url, headers)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(attempt int, wait time.Duration, err error) {
		f.log.Debug("fetch retry", "url", url, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Stop(err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// Session returns a Fetcher with its own connection pool. The caller owns it
// and must Close it when the adapter invocation is finished.
func (f *Fetcher) Session() *Session {
	transport := f.client.Transport
	if t, ok := transport.(*http.Transport); ok {
		transport = t.Clone()
	}
	return &Session{Fetcher: &Fetcher{
		client:    &http.Client{Timeout: f.client.Timeout, Transport: transport},
		policy:    f.policy,
		userAgent: f.userAgent,
		log:       f.log,
	}}
}

type Session struct {
	*Fetcher
}

func (s *Session) Close() {
	s.client.CloseIdleConnections()
}
