package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

type GeminiOptions struct {
	APIKey   string
	Model    string
	Language string
	Logger   *slog.Logger
}

type Gemini struct {
	client   *genai.Client
	model    string
	language string
	log      *slog.Logger
}

var _ Generator = (*Gemini)(nil)

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gemini{client: client, model: opts.Model, language: opts.Language, log: opts.Logger}, nil
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gemini) Generate(ctx context.Context, text string, variation int) (PostData, error) {
	input, err := prepareInput(text)
	if err != nil {
		return PostData{}, err
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(variation, g.language)))
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return PostData{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return PostData{}, errors.New("no response from Gemini")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	pd, err := ParsePostData(b.String())
	if err != nil {
		g.log.Warn("unparseable Gemini reply", "error", err, "reply", b.String())
		return PostData{}, err
	}
	return pd, nil
}
