package pipeline

import (
	"context"

	"github.com/sells-group/fin-extract/internal/model"
)

// DelegatedExtractor sends a whole document to an inference provider.
type DelegatedExtractor interface {
	Provider() string
	Extract(ctx context.Context, doc *model.RawDocument) (*model.DelegatedPayload, error)
}

// DelegatedStrategy is the last resort. It runs only when the caller opted
// in and every local strategy failed.
type DelegatedStrategy struct {
	extractor DelegatedExtractor
}

// NewDelegatedStrategy creates the strategy.
func NewDelegatedStrategy(e DelegatedExtractor) *DelegatedStrategy {
	return &DelegatedStrategy{extractor: e}
}

// ID implements Strategy.
func (*DelegatedStrategy) ID() model.StrategyID { return model.StrategyDelegated }

// Applies implements Strategy.
func (d *DelegatedStrategy) Applies(doc *model.RawDocument) bool {
	return d.extractor != nil && doc.Kind != model.KindRejected
}

// Attempt implements Strategy.
func (d *DelegatedStrategy) Attempt(ctx context.Context, doc *model.RawDocument) model.AttemptResult {
	p, err := d.extractor.Extract(ctx, doc)
	if err != nil {
		res := model.Failed(model.StrategyDelegated, model.DiagnosticFromError(err, model.ErrDelegatedService))
		res.Source = d.extractor.Provider()
		return res
	}
	return model.AttemptResult{Strategy: model.StrategyDelegated, Payload: p, Source: d.extractor.Provider()}
}
