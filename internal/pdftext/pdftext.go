// Package pdftext produces a page-ordered transcript of a PDF's text layer
// using interchangeable extraction engines.
package pdftext

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/model"
)

// Diagnostic messages for documents no engine can read.
const (
	MsgEncrypted   = "PDF защищен паролем или зашифрован"
	MsgZeroPages   = "PDF не содержит страниц"
	MsgNoTextLayer = "PDF не содержит текстового слоя"
)

// Source is a PDF held both in memory and on disk, since command-line
// engines need a path.
type Source struct {
	Data  []byte
	Path  string
	Pages int
}

// NewSource writes data to a temporary file. The returned cleanup removes it.
func NewSource(data []byte) (Source, func(), error) {
	f, err := os.CreateTemp("", "fin-extract-*.pdf")
	if err != nil {
		return Source{}, func() {}, eris.Wrap(err, "pdftext: create temp file")
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return Source{}, func() {}, eris.Wrap(err, "pdftext: write temp file")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return Source{}, func() {}, eris.Wrap(err, "pdftext: close temp file")
	}
	return Source{Data: data, Path: f.Name()}, cleanup, nil
}

// Engine extracts one string per page.
type Engine interface {
	Name() string
	Available() bool
	ExtractPages(ctx context.Context, src Source) ([]string, error)
}

// Transcript is the extracted text of a document.
type Transcript struct {
	Text   string
	Engine string
	Pages  int
}

// Extractor runs a structural check, then tries each engine in order until
// one produces non-blank text.
type Extractor struct {
	inspector Inspector
	engines   []Engine
}

// NewExtractor builds an Extractor. Engines are tried in the given order.
func NewExtractor(inspector Inspector, engines ...Engine) *Extractor {
	if inspector == nil {
		inspector = NativeInspector{}
	}
	return &Extractor{inspector: inspector, engines: engines}
}

// Extract returns the transcript of src. Encrypted and zero-page documents
// fail before any engine runs; a document no engine can read fails with
// NoTextLayer.
func (e *Extractor) Extract(ctx context.Context, src Source) (*Transcript, error) {
	info, err := e.inspector.Inspect(src.Data)
	switch {
	case err != nil:
		zap.L().Warn("pdftext: structural check failed, trying engines anyway", zap.Error(err))
	case info.Encrypted:
		return nil, model.NewKindError(model.ErrEncryptedDocument, eris.New(MsgEncrypted))
	case info.Pages == 0:
		return nil, model.NewKindError(model.ErrZeroPages, eris.New(MsgZeroPages))
	default:
		src.Pages = info.Pages
	}

	for _, eng := range e.engines {
		log := zap.L().With(zap.String("engine", eng.Name()))
		if !eng.Available() {
			log.Debug("pdftext: engine unavailable")
			continue
		}

		pages, err := eng.ExtractPages(ctx, src)
		if err != nil {
			log.Warn("pdftext: engine failed", zap.Error(err))
			continue
		}

		text := JoinPages(pages)
		if strings.TrimSpace(text) == "" {
			log.Debug("pdftext: engine returned blank transcript")
			continue
		}

		log.Debug("pdftext: transcript extracted", zap.Int("pages", len(pages)), zap.Int("chars", len(text)))
		return &Transcript{Text: text, Engine: eng.Name(), Pages: len(pages)}, nil
	}

	return nil, model.NewKindError(model.ErrNoTextLayer, eris.New(MsgNoTextLayer))
}

// JoinPages joins non-blank pages with the page separator.
func JoinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, model.PageSeparator)
}
