package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fin-extract/internal/config"
)

func TestNewRecognizer_Tesseract(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: "tesseract", DPI: 300, Languages: "rus"}, "")
	require.NoError(t, err)
	require.IsType(t, &Tesseract{}, r)
	assert.Equal(t, 300, r.(*Tesseract).opts.DPI)
	assert.Equal(t, "rus", r.(*Tesseract).opts.Languages)
}

func TestNewRecognizer_TesseractDefault(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: ""}, "")
	require.NoError(t, err)
	require.IsType(t, &Tesseract{}, r)

	opts := r.(*Tesseract).opts
	assert.Equal(t, "pdftoppm", opts.PdftoppmPath)
	assert.Equal(t, "tesseract", opts.TesseractPath)
	assert.Equal(t, 200, opts.DPI)
	assert.Equal(t, "rus+eng", opts.Languages)
}

func TestNewRecognizer_MistralMissingKey(t *testing.T) {
	_, err := NewRecognizer(config.OCRConfig{Provider: "mistral"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral.key")
}

func TestNewRecognizer_MistralWithKey(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: "mistral"}, "test-key")
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, r)
	assert.True(t, r.Available())
}

func TestNewRecognizer_None(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: "none"}, "")
	require.NoError(t, err)
	assert.False(t, r.Available())

	_, err = r.Recognize(context.Background(), "/tmp/x.pdf")
	assert.Error(t, err)
}

func TestNewRecognizer_UnknownProvider(t *testing.T) {
	_, err := NewRecognizer(config.OCRConfig{Provider: "unknown"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func writeBin(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestTesseract_Available(t *testing.T) {
	dir := t.TempDir()
	ppm := writeBin(t, dir, "pdftoppm", "exit 0\n")
	tess := writeBin(t, dir, "tesseract", "exit 0\n")

	assert.True(t, NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: tess}).Available())
	assert.False(t, NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: "/nonexistent/tesseract"}).Available())
	assert.False(t, NewTesseract(TesseractOptions{PdftoppmPath: "/nonexistent/pdftoppm", TesseractPath: tess}).Available())
}

func TestTesseract_Recognize(t *testing.T) {
	dir := t.TempDir()
	// pdftoppm -r DPI -png in.pdf prefix
	ppm := writeBin(t, dir, "pdftoppm", `[ "$2" = "200" ] || { echo "bad dpi $2" >&2; exit 1; }
touch "$5-1.png" "$5-2.png" "$5-10.png"
`)
	// tesseract image stdout -l langs
	tess := writeBin(t, dir, "tesseract", `echo "$(basename "$1") $4"
`)

	r := NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: tess})
	pages, err := r.Recognize(context.Background(), filepath.Join(dir, "scan.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"page-1.png rus+eng\n",
		"page-2.png rus+eng\n",
		"page-10.png rus+eng\n",
	}, pages)
}

func TestTesseract_RasterizeFails(t *testing.T) {
	dir := t.TempDir()
	ppm := writeBin(t, dir, "pdftoppm", "echo 'Syntax Error: broken xref' >&2\nexit 1\n")
	tess := writeBin(t, dir, "tesseract", "exit 0\n")

	_, err := NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: tess}).
		Recognize(context.Background(), "/tmp/scan.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: rasterize")
	assert.Contains(t, err.Error(), "broken xref")
}

func TestTesseract_NoImages(t *testing.T) {
	dir := t.TempDir()
	ppm := writeBin(t, dir, "pdftoppm", "exit 0\n")
	tess := writeBin(t, dir, "tesseract", "exit 0\n")

	_, err := NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: tess}).
		Recognize(context.Background(), "/tmp/scan.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no page images")
}

func TestTesseract_RecognizeFails(t *testing.T) {
	dir := t.TempDir()
	ppm := writeBin(t, dir, "pdftoppm", `touch "$5-1.png"`+"\n")
	tess := writeBin(t, dir, "tesseract", "echo 'Failed loading language rus' >&2\nexit 1\n")

	_, err := NewTesseract(TesseractOptions{PdftoppmPath: ppm, TesseractPath: tess}).
		Recognize(context.Background(), "/tmp/scan.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recognize page 1")
	assert.Contains(t, err.Error(), "Failed loading language rus")
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_CustomModel(t *testing.T) {
	m := NewMistralOCR("key", "custom-model")
	assert.Equal(t, "custom-model", m.model)
	assert.Equal(t, "mistral", m.Name())
}

func writePDF(t *testing.T) string {
	t.Helper()
	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test content"), 0644))
	return pdfPath
}

func TestMistralOCR_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		// Out of order on purpose.
		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 1, Markdown: "Выручка | 1 000"},
				{Index: 0, Markdown: "Бухгалтерский баланс"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	pages, err := m.Recognize(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Бухгалтерский баланс", "Выручка | 1 000"}, pages)
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{
		apiKey:   "bad-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	_, err := m.Recognize(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	m := NewMistralOCR("key", "model")
	_, err := m.Recognize(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PDF")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	_, err := m.Recognize(context.Background(), writePDF(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_EmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := mistralOCRResponse{Pages: []mistralOCRPage{}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	pages, err := m.Recognize(context.Background(), writePDF(t))
	require.NoError(t, err)
	assert.Empty(t, pages)
}
