// Package assistant turns an article into a social post with an LLM.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Prompt variations offered by the "Generate post" flow.
const (
	VariationRegenerate = 1
	VariationFancy      = 2
)

const (
	DefaultLanguage = "Russian"
	maxInputRunes   = 6000
	temperature     = 0.51
	maxTokens       = 2261
)

var (
	ErrEmptyInput = errors.New("article has no text")
	ErrEmptyPost  = errors.New("model returned an empty post")
)

// PostData is the JSON object the model is asked to return.
type PostData struct {
	SocialPost   string `json:"social_post"`
	ImagesSearch string `json:"images_search"`
}

// Generator produces a post for text using prompt variation.
type Generator interface {
	Generate(ctx context.Context, text string, variation int) (PostData, error)
}

// prepareInput normalizes whitespace and caps the prompt size, preferring to
// cut at a sentence end.
func prepareInput(text string) (string, error) {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if utf8.RuneCountInString(text) > maxInputRunes {
		trimmed := string([]rune(text)[:maxInputRunes])
		if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
			trimmed = trimmed[:idx+1]
		}
		text = trimmed
	}
	return text, nil
}

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// ParsePostData decodes the model reply. Models often put raw newlines inside
// the JSON strings, so a failed decode is retried with them escaped.
func ParsePostData(raw string) (PostData, error) {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var pd PostData
	if err := json.Unmarshal([]byte(s), &pd); err != nil {
		escaped := strings.NewReplacer("\n", "\\n", "\t", "\\t").Replace(s)
		if err2 := json.Unmarshal([]byte(escaped), &pd); err2 != nil {
			return PostData{}, fmt.Errorf("invalid JSON from model: %w", err)
		}
	}

	pd.SocialPost = SanitizeAIText(pd.SocialPost)
	pd.ImagesSearch = strings.TrimSpace(pd.ImagesSearch)
	if pd.SocialPost == "" {
		return PostData{}, ErrEmptyPost
	}
	return pd, nil
}

var (
	inlineDisclaimer  = regexp.MustCompile(`(?i)\(\s*(?:note|disclaimer)\s*:[^)]*\)`)
	bracketDisclaimer = regexp.MustCompile(`(?i)\[\s*(?:note|disclaimer)\s*:[^\]]*\]`)
	lineDisclaimer    = regexp.MustCompile(`(?i)^\s*(?:note|disclaimer)\s*:`)
)

// SanitizeAIText strips the "Note: this is a machine translation" style
// remarks models like to add.
func SanitizeAIText(s string) string {
	s = inlineDisclaimer.ReplaceAllString(s, "")
	s = bracketDisclaimer.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if lineDisclaimer.MatchString(l) {
			continue
		}
		out = append(out, strings.Join(strings.Fields(l), " "))
	}
	s = strings.Join(out, "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
