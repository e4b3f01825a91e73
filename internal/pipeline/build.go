package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/config"
	"github.com/sells-group/fin-extract/internal/delegate"
	"github.com/sells-group/fin-extract/internal/ocr"
	"github.com/sells-group/fin-extract/internal/pdftext"
)

// NewFromConfig wires the default cascade: structured, heuristic, and
// delegated when it is allowed and a provider key is configured.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	extractor := pdftext.NewExtractor(pdftext.NativeInspector{},
		pdftext.NewNativeEngine(),
		pdftext.NewPopplerEngine(cfg.PDF.PdfToTextPath),
	)

	recognizer, err := ocr.NewRecognizer(cfg.OCR, cfg.Mistral.Key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: init recognizer")
	}
	if !recognizer.Available() {
		zap.L().Warn("pipeline: optical recognition unavailable, scanned PDFs will fail",
			zap.String("provider", recognizer.Name()))
	}

	strategies := []Strategy{
		StructuredStrategy{},
		NewHeuristicStrategy(extractor, recognizer),
	}

	if !cfg.Pipeline.AllowDelegated {
		zap.L().Info("pipeline: delegated strategy disabled by config")
		return New(strategies...), nil
	}
	if err := cfg.ValidateDelegate(); err != nil {
		zap.L().Warn("pipeline: delegated strategy unavailable", zap.Error(err))
		return New(strategies...), nil
	}

	gen, err := delegate.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: init delegated provider")
	}
	ex := delegate.New(gen, delegate.Options{
		LenientJSON:       cfg.Delegate.LenientJSON,
		RequestsPerMinute: cfg.Delegate.RequestsPerMinute,
		Breaker:           delegate.NewBreaker(gen.Name()),
	})
	zap.L().Info("pipeline: delegated strategy enabled", zap.String("provider", gen.Name()))

	strategies = append(strategies, NewDelegatedStrategy(ex))
	return New(strategies...), nil
}
