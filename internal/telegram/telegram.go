// Package telegram talks to the Telegram Bot API over plain HTTPS and
// announces freshly stored articles to the admins.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newschannel/internal/retry"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	// GeneratePostPrefix starts the callback data of the "Generate post" button.
	GeneratePostPrefix = "generate_post:"

	maxCaption = 1000
)

// Button is one inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// APIError is a non-OK reply from the Bot API.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

type Options struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.RetryConfig
	Logger     *slog.Logger
}

type Client struct {
	token   string
	baseURL string
	http    *http.Client
	retry   retry.RetryConfig
	log     *slog.Logger
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		token:   opts.Token,
		baseURL: opts.BaseURL,
		http:    opts.HTTPClient,
		retry:   opts.Retry,
		log:     opts.Logger,
	}
}

// SendMessage sends a Markdown message, optionally with one row of inline buttons.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, buttons ...Button) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": false,
	}
	if len(buttons) > 0 {
		payload["reply_markup"] = replyMarkup{InlineKeyboard: [][]Button{buttons}}
	}
	return c.call(ctx, "sendMessage", payload)
}

// SendPhoto sends a photo by URL with a caption trimmed to the API limit.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string, buttons ...Button) error {
	if r := []rune(caption); len(r) > maxCaption {
		caption = string(r[:maxCaption])
	}
	payload := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": "Markdown",
	}
	if len(buttons) > 0 {
		payload["reply_markup"] = replyMarkup{InlineKeyboard: [][]Button{buttons}}
	}
	return c.call(ctx, "sendPhoto", payload)
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	attempt := 0
	err = retry.WithRetry(ctx, c.retry, func() error {
		attempt++
		err := c.callOnce(ctx, method, body)
		if err != nil {
			c.log.Warn("telegram request failed", "method", method, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return err
	}
	c.log.Debug("telegram request sent", "method", method, "attempt", attempt)
	return nil
}

func (c *Client) callOnce(ctx context.Context, method string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Stop(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	var out apiResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)
	if resp.StatusCode == http.StatusOK && out.OK {
		return nil
	}

	apiErr := &APIError{Method: method, StatusCode: resp.StatusCode, Description: out.Description}
	// Bad chat ids or markup never succeed on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Stop(apiErr)
	}
	return apiErr
}
