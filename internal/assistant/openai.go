package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = openai.GPT4oMini

type OpenAIOptions struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Logger   *slog.Logger
}

type OpenAI struct {
	client   *openai.Client
	model    string
	language string
	log      *slog.Logger
}

var _ Generator = (*OpenAI)(nil)

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		language: opts.Language,
		log:      opts.Logger,
	}
}

func (o *OpenAI) Generate(ctx context.Context, text string, variation int) (PostData, error) {
	input, err := prepareInput(text)
	if err != nil {
		return PostData{}, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(variation, o.language)},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return PostData{}, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return PostData{}, errors.New("no response from OpenAI")
	}

	pd, err := ParsePostData(resp.Choices[0].Message.Content)
	if err != nil {
		o.log.Warn("unparseable OpenAI reply", "error", err, "reply", resp.Choices[0].Message.Content)
		return PostData{}, err
	}
	return pd, nil
}
