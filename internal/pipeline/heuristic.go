package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/classify"
	"github.com/sells-group/fin-extract/internal/heuristic"
	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/ocr"
	"github.com/sells-group/fin-extract/internal/pdftext"
	"github.com/sells-group/fin-extract/internal/regxml"
)

// MsgNoRecognition is the diagnostic of a scanned PDF when optical
// recognition is not installed.
const MsgNoRecognition = "no text layer and no recognition available"

// TextExtractor reads the text layer of a PDF.
type TextExtractor interface {
	Extract(ctx context.Context, src pdftext.Source) (*pdftext.Transcript, error)
}

// HeuristicStrategy acquires a transcript (text layer, optical recognition,
// markup dump or plain text) and scans it with the label patterns.
type HeuristicStrategy struct {
	pdf        TextExtractor
	recognizer ocr.Recognizer
}

// NewHeuristicStrategy creates the strategy. recognizer may be nil.
func NewHeuristicStrategy(pdf TextExtractor, recognizer ocr.Recognizer) *HeuristicStrategy {
	return &HeuristicStrategy{pdf: pdf, recognizer: recognizer}
}

// ID implements Strategy.
func (*HeuristicStrategy) ID() model.StrategyID { return model.StrategyHeuristic }

// Applies implements Strategy.
func (*HeuristicStrategy) Applies(doc *model.RawDocument) bool {
	return doc.Kind != model.KindRejected
}

// Attempt implements Strategy.
func (h *HeuristicStrategy) Attempt(ctx context.Context, doc *model.RawDocument) model.AttemptResult {
	text, source, err := h.transcript(ctx, doc)
	if err != nil {
		return model.Failed(model.StrategyHeuristic, model.DiagnosticFromError(err, model.ErrInternal))
	}

	p := heuristic.Extract(text)
	if p.Empty() {
		res := model.Failed(model.StrategyHeuristic, &model.Diagnostic{
			Kind:    model.ErrHeuristicEmpty,
			Message: "no balance or income values recognized in the " + source + " transcript",
		})
		res.Transcript = text
		res.Source = source
		return res
	}
	return model.AttemptResult{
		Strategy:   model.StrategyHeuristic,
		Payload:    p,
		Transcript: text,
		Source:     source,
	}
}

// transcript returns the document text and the engine that produced it.
func (h *HeuristicStrategy) transcript(ctx context.Context, doc *model.RawDocument) (string, string, error) {
	switch doc.Kind {
	case model.KindPaginatedDocument:
		return h.pdfTranscript(ctx, doc)
	case model.KindStructuredMarkup:
		text, err := regxml.Text(doc.Data)
		if err != nil {
			return "", "", model.NewKindError(model.ErrMarkupParse, err)
		}
		return text, "xml", nil
	default:
		text, ok := classify.DecodeText(doc.Data)
		if !ok {
			return "", "", model.NewKindError(model.ErrDecodeFailure, eris.New("pipeline: text is neither UTF-8 nor windows-1251"))
		}
		return text, "text", nil
	}
}

func (h *HeuristicStrategy) pdfTranscript(ctx context.Context, doc *model.RawDocument) (string, string, error) {
	if h.pdf == nil {
		return "", "", model.NewKindError(model.ErrNoTextLayer, eris.New("pipeline: no PDF text extractor configured"))
	}

	src, cleanup, err := pdftext.NewSource(doc.Data)
	if err != nil {
		return "", "", err
	}
	defer cleanup()

	tr, err := h.pdf.Extract(ctx, src)
	if err == nil {
		return tr.Text, tr.Engine, nil
	}
	if model.KindOf(err, model.ErrInternal) != model.ErrNoTextLayer {
		return "", "", err
	}

	if h.recognizer == nil || !h.recognizer.Available() {
		return "", "", model.NewKindError(model.ErrRecognitionUnavailable, eris.New(MsgNoRecognition))
	}

	zap.L().Info("pipeline: no text layer, running optical recognition",
		zap.String("file", doc.Filename),
		zap.String("recognizer", h.recognizer.Name()),
	)
	pages, err := h.recognizer.Recognize(ctx, src.Path)
	if err != nil {
		return "", "", model.NewKindError(model.ErrRecognitionFailed, err)
	}
	text := pdftext.JoinPages(pages)
	if strings.TrimSpace(text) == "" {
		return "", "", model.NewKindError(model.ErrRecognitionFailed,
			eris.Errorf("pipeline: %s recognized no text", h.recognizer.Name()))
	}
	return text, h.recognizer.Name(), nil
}
