// Package ocr recognizes text in scanned PDFs that carry no text layer.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-extract/internal/config"
)

// Recognizer turns the pages of a PDF file into text, one string per page
// in page order.
type Recognizer interface {
	Name() string
	Available() bool
	Recognize(ctx context.Context, pdfPath string) ([]string, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig, mistralKey string) (Recognizer, error) {
	switch cfg.Provider {
	case "tesseract", "":
		return NewTesseract(TesseractOptions{
			PdftoppmPath:  cfg.PdftoppmPath,
			TesseractPath: cfg.TesseractPath,
			DPI:           cfg.DPI,
			Languages:     cfg.Languages,
		}), nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral.key")
		}
		return NewMistralOCR(mistralKey, cfg.MistralModel), nil
	case "none":
		return Disabled{}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Disabled is a Recognizer that is never available.
type Disabled struct{}

// Name implements Recognizer.
func (Disabled) Name() string { return "none" }

// Available implements Recognizer.
func (Disabled) Available() bool { return false }

// Recognize implements Recognizer.
func (Disabled) Recognize(context.Context, string) ([]string, error) {
	return nil, eris.New("ocr: recognition is disabled")
}
