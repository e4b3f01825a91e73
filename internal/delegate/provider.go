package delegate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/config"
	"github.com/sells-group/fin-extract/internal/resilience"
	"github.com/sells-group/fin-extract/pkg/anthropic"
	"github.com/sells-group/fin-extract/pkg/gemini"
)

// Request is one document sent to an inference provider.
type Request struct {
	Filename string
	Prompt   string
	Document []byte
	MIMEType string
}

// Generator sends a request to an inference provider and returns the raw
// response text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// NewGenerator builds the provider selected by delegate.provider.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	timeout := time.Duration(cfg.Delegate.TimeoutSecs) * time.Second

	switch cfg.Delegate.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, gemini.Options{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(client, cfg.Gemini.Model, cfg.Delegate.MaxTokens), nil
	case "anthropic":
		client := anthropic.NewClient(cfg.Anthropic.Key, timeout)
		return NewAnthropicGenerator(client, cfg.Anthropic.Model, cfg.Delegate.MaxTokens), nil
	default:
		return nil, eris.Errorf("delegate: unknown provider %q", cfg.Delegate.Provider)
	}
}

// GeminiGenerator sends documents to Gemini as inline data.
type GeminiGenerator struct {
	client    gemini.Client
	model     string
	maxTokens int32
}

// NewGeminiGenerator wraps a Gemini client.
func NewGeminiGenerator(client gemini.Client, model string, maxTokens int) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model, maxTokens: int32(maxTokens)}
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Generate(ctx, gemini.Request{
		Model:           g.model,
		Prompt:          req.Prompt,
		Attachment:      req.Document,
		MIMEType:        req.MIMEType,
		MaxOutputTokens: g.maxTokens,
		JSON:            true,
	})
	if err != nil {
		return "", markTransient(err, gemini.StatusCode(err))
	}
	resp.LogUsage(g.model, req.Filename)
	return resp.Text, nil
}

// AnthropicGenerator sends documents to Claude as a document block.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator wraps an Anthropic client.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: model, maxTokens: int64(maxTokens)}
}

// Name implements Generator.
func (a *AnthropicGenerator) Name() string { return "anthropic" }

// Generate implements Generator.
func (a *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	temp := 0.1
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.Message{{
			Role:      "user",
			Content:   req.Prompt,
			Documents: []anthropic.Document{{MediaType: req.MIMEType, Data: req.Document}},
		}},
		Temperature: &temp,
	})
	if err != nil {
		return "", markTransient(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(a.model, req.Filename)
	return resp.Text(), nil
}

func markTransient(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
