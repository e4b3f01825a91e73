package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	PDF       PDFConfig       `yaml:"pdf" mapstructure:"pdf"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Delegate  DelegateConfig  `yaml:"delegate" mapstructure:"delegate"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Mistral   MistralConfig   `yaml:"mistral" mapstructure:"mistral"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Disabled turns the cache off; every document is re-extracted.
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
}

// PipelineConfig configures the strategy cascade.
type PipelineConfig struct {
	AllowDelegated bool `yaml:"allow_delegated" mapstructure:"allow_delegated"`
}

// PDFConfig configures paginated text extraction.
type PDFConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// OCRConfig configures the optical recognition fallback.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdftoppmPath  string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	DPI           int    `yaml:"dpi" mapstructure:"dpi"`
	Languages     string `yaml:"languages" mapstructure:"languages"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// DelegateConfig configures the delegated inference strategy.
type DelegateConfig struct {
	Provider          string `yaml:"provider" mapstructure:"provider"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	LenientJSON       bool   `yaml:"lenient_json" mapstructure:"lenient_json"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// MistralConfig holds Mistral API credentials.
type MistralConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are usually exported without the prefix.
	for key, env := range map[string]string{
		"gemini.key":    "GEMINI_API_KEY",
		"anthropic.key": "ANTHROPIC_API_KEY",
		"mistral.key":   "MISTRAL_API_KEY",
	} {
		if err := v.BindEnv(key, "FINEXTRACT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fin-extract.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_documents", 4)
	v.SetDefault("pipeline.allow_delegated", true)
	v.SetDefault("pdf.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.pdftoppm_path", "pdftoppm")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.dpi", 200)
	v.SetDefault("ocr.languages", "rus+eng")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("delegate.provider", "gemini")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("delegate.max_tokens", 8192)
	v.SetDefault("delegate.requests_per_minute", 10)
	v.SetDefault("delegate.timeout_secs", 180)
	v.SetDefault("delegate.max_retries", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes are "extract",
// "batch" and "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract", "batch":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	if !c.Store.Disabled && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.OCR.Provider {
	case "", "tesseract", "none":
	case "mistral":
		if c.Mistral.Key == "" {
			errs = append(errs, "mistral.key is required for the mistral ocr provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("ocr.provider %q is not one of tesseract, mistral, none", c.OCR.Provider))
	}

	if c.Batch.MaxConcurrentDocuments < 1 || c.Batch.MaxConcurrentDocuments > 32 {
		errs = append(errs, "batch.max_concurrent_documents must be between 1 and 32")
	}
	if c.Delegate.RequestsPerMinute < 0 {
		errs = append(errs, "delegate.requests_per_minute must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateDelegate checks that the delegated provider is known and has a key.
func (c *Config) ValidateDelegate() error {
	switch c.Delegate.Provider {
	case "gemini":
		if c.Gemini.Key == "" {
			return eris.New("config: gemini.key (GEMINI_API_KEY) is required for delegated extraction")
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key (ANTHROPIC_API_KEY) is required for delegated extraction")
		}
	default:
		return eris.Errorf("config: unknown delegate provider %q", c.Delegate.Provider)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
