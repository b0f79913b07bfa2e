package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Config selects the models and sampling used by Gemini.
type Config struct {
	Model          string
	FallbackModels []string
	Temperature    float32
	APIVersion     string
}

// Models returns the primary model followed by the fallbacks, without
// blanks or repeats.
func (c Config) Models() []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range append([]string{c.Model}, c.FallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// contentGenerator is the part of the genai client Gemini uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini answers context payloads with Google's generative models.
type Gemini struct {
	models contentGenerator
	cfg    Config
}

// NewGemini creates a genai client. Credentials come from the usual
// GOOGLE_API_KEY or Vertex AI environment.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if len(cfg.Models()) == 0 {
		return nil, errors.New("newGemini: no model configured")
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = "v1"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: apiVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("newGemini: create genai client: %w", err)
	}
	return &Gemini{models: client.Models, cfg: cfg}, nil
}

// Analyze sends the payload prompt to each configured model in turn and
// returns the first non-empty answer.
func (g *Gemini) Analyze(ctx context.Context, payload selector.Payload) (string, error) {
	log := logger.FromContext(ctx)

	prompt, err := BuildPrompt(payload)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	temperature := g.cfg.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	var lastErr error
	for _, model := range g.cfg.Models() {
		resp, err := g.models.GenerateContent(ctx, model, contents, config)
		if err == nil {
			if text := strings.TrimSpace(resp.Text()); text != "" {
				log.Debug().Str("model", model).Int("chars", len(text)).Msg("Analysis generated")
				return text, nil
			}
			err = ErrEmptyResponse
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		log.Warn().Err(err).Str("model", model).Msg("Model failed, trying next")
		lastErr = fmt.Errorf("model %s: %w", model, err)
	}

	return "", fmt.Errorf("analyze: all models failed: %w", lastErr)
}
