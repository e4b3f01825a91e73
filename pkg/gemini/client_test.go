package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.GenerateContentResponse), args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(text)}, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     900,
			CandidatesTokenCount: 120,
		},
	}
}

func TestGenerate_AttachmentFirst(t *testing.T) {
	m := &mockGenerator{}
	m.On("GenerateContent", mock.Anything, "gemini-2.5-flash",
		mock.MatchedBy(func(contents []*genai.Content) bool {
			if len(contents) != 1 || len(contents[0].Parts) != 2 {
				return false
			}
			parts := contents[0].Parts
			return contents[0].Role == genai.RoleUser &&
				parts[0].InlineData != nil &&
				parts[0].InlineData.MIMEType == "application/pdf" &&
				parts[1].Text == "extract"
		}),
		mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
			return cfg.ResponseMIMEType == "application/json" && cfg.MaxOutputTokens == 4096
		}),
	).Return(textResponse(`{"report_year":"2023"}`), nil)

	c := &sdkClient{models: m}
	resp, err := c.Generate(context.Background(), Request{
		Model:           "gemini-2.5-flash",
		Prompt:          "extract",
		Attachment:      []byte("%PDF-1.4"),
		MIMEType:        "application/pdf",
		MaxOutputTokens: 4096,
		JSON:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"report_year":"2023"}`, resp.Text)
	assert.Equal(t, int32(900), resp.PromptTokens)
	assert.Equal(t, int32(120), resp.OutputTokens)
	m.AssertExpectations(t)
}

func TestGenerate_NoAttachment(t *testing.T) {
	m := &mockGenerator{}
	m.On("GenerateContent", mock.Anything, "gemini-2.5-flash",
		mock.MatchedBy(func(contents []*genai.Content) bool {
			return len(contents[0].Parts) == 1 && contents[0].Parts[0].Text == "hi"
		}),
		mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
			return cfg.ResponseMIMEType == ""
		}),
	).Return(textResponse("ok"), nil)

	resp, err := (&sdkClient{models: m}).Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestGenerate_Error(t *testing.T) {
	m := &mockGenerator{}
	m.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, genai.APIError{Code: 429, Message: "quota exceeded"})

	_, err := (&sdkClient{models: m}).Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
	assert.Equal(t, 429, StatusCode(err))
}

func TestStatusCode(t *testing.T) {
	assert.Zero(t, StatusCode(eris.New("plain")))
	assert.Equal(t, 503, StatusCode(eris.Wrap(&genai.APIError{Code: 503}, "wrapped")))
}

func TestResponse_LogUsage(t *testing.T) {
	assert.NotPanics(t, func() {
		(&Response{PromptTokens: 1, OutputTokens: 2}).LogUsage("gemini-2.5-flash", "a.pdf")
	})
}

func TestNewClient_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "```json\n{}\n```"}},
				},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 3},
		})
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), "test-key", Options{Timeout: 5 * time.Second, BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", resp.Text)
	assert.Equal(t, int32(3), resp.OutputTokens)
}
