// Package gemini wraps the Gemini API for single-document extraction
// requests: one prompt plus one inline attachment, JSON response.
package gemini

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client defines the Gemini operations used by the delegated extractor.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single prompt with an optional attachment.
type Request struct {
	Model           string
	Prompt          string
	Attachment      []byte
	MIMEType        string
	MaxOutputTokens int32
	// JSON asks the model for an application/json response.
	JSON bool
}

// Response is the generated text with token accounting.
type Response struct {
	Text         string
	PromptTokens int32
	OutputTokens int32
}

// LogUsage logs token usage for one document.
func (r *Response) LogUsage(model, file string) {
	zap.L().Info("gemini: usage",
		zap.String("model", model),
		zap.String("file", file),
		zap.Int32("prompt_tokens", r.PromptTokens),
		zap.Int32("output_tokens", r.OutputTokens),
	)
}

// contentGenerator is the slice of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	models contentGenerator
}

// Options tune the underlying genai client.
type Options struct {
	Timeout time.Duration
	// BaseURL overrides the API endpoint; used by tests.
	BaseURL string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts Options) (Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cc.HTTPOptions.Timeout = genai.Ptr(opts.Timeout)
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions.BaseURL = opts.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{models: client.Models}, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	parts := make([]*genai.Part, 0, 2)
	if len(req.Attachment) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment, req.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := &Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

// StatusCode returns the HTTP status of an API error in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
