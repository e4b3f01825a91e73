package pipeline

import (
	"context"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/regxml"
)

// StructuredStrategy reads registry-schema markup.
type StructuredStrategy struct{}

// ID implements Strategy.
func (StructuredStrategy) ID() model.StrategyID { return model.StrategyStructured }

// Applies implements Strategy.
func (StructuredStrategy) Applies(doc *model.RawDocument) bool {
	return doc.Kind == model.KindStructuredMarkup
}

// Attempt implements Strategy. A document without balance or income values
// fails with StructureAbsent so the cascade moves on.
func (StructuredStrategy) Attempt(_ context.Context, doc *model.RawDocument) model.AttemptResult {
	p, err := regxml.Parse(doc.Data)
	if err != nil {
		return model.Failed(model.StrategyStructured, model.DiagnosticFromError(err, model.ErrMarkupParse))
	}
	return model.AttemptResult{Strategy: model.StrategyStructured, Payload: p, Source: "xml"}
}
