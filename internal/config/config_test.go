package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "fin-extract.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentDocuments)
	assert.True(t, cfg.Pipeline.AllowDelegated)
	assert.Equal(t, "pdftotext", cfg.PDF.PdfToTextPath)
	assert.Equal(t, "tesseract", cfg.OCR.Provider)
	assert.Equal(t, 200, cfg.OCR.DPI)
	assert.Equal(t, "rus+eng", cfg.OCR.Languages)
	assert.Equal(t, "gemini", cfg.Delegate.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 10, cfg.Delegate.RequestsPerMinute)
	assert.False(t, cfg.Delegate.LenientJSON)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/fin
log:
  level: debug
  format: console
ocr:
  provider: none
delegate:
  provider: anthropic
  lenient_json: true
batch:
  max_concurrent_documents: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/fin", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "none", cfg.OCR.Provider)
	assert.Equal(t, "anthropic", cfg.Delegate.Provider)
	assert.True(t, cfg.Delegate.LenientJSON)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentDocuments)
	// Defaults still apply for unset values
	assert.Equal(t, 200, cfg.OCR.DPI)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FINEXTRACT_STORE_DRIVER", "postgres")
	t.Setenv("FINEXTRACT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FINEXTRACT_SERVER_PORT", "3000")
	t.Setenv("FINEXTRACT_OCR_DPI", "300")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 300, cfg.OCR.DPI)
}

func TestLoadProviderKeysFromBareEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("MISTRAL_API_KEY", "m-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Gemini.Key)
	assert.Equal(t, "a-key", cfg.Anthropic.Key)
	assert.Equal(t, "m-key", cfg.Mistral.Key)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GEMINI_API_KEY", "bare")
	t.Setenv("FINEXTRACT_GEMINI_KEY", "prefixed")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Gemini.Key)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "fin-extract.db"
	cfg.OCR.Provider = "tesseract"
	cfg.Batch.MaxConcurrentDocuments = 4
	cfg.Delegate.Provider = "gemini"
	cfg.Delegate.RequestsPerMinute = 10
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateExtract_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("extract"))
	assert.NoError(t, validDefaults().Validate("batch"))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""
	cfg.OCR.Provider = "abbyy"

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), `ocr.provider "abbyy"`)
}

func TestValidate_DisabledStoreNeedsNoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Disabled = true

	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidate_MistralNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.OCR.Provider = "mistral"

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral.key is required")

	cfg.Mistral.Key = "m-key"
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve.
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentDocuments = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_documents must be between 1 and 32")

	cfg.Batch.MaxConcurrentDocuments = 33
	assert.Error(t, cfg.Validate("batch"))

	cfg.Batch.MaxConcurrentDocuments = 32
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateDelegate(t *testing.T) {
	cfg := validDefaults()

	err := cfg.ValidateDelegate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.Gemini.Key = "g-key"
	assert.NoError(t, cfg.ValidateDelegate())

	cfg.Delegate.Provider = "anthropic"
	err = cfg.ValidateDelegate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	cfg.Delegate.Provider = "openai"
	err = cfg.ValidateDelegate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown delegate provider")
}
