// Package pipeline runs the extraction cascade for one document: classify,
// try each applicable strategy in priority order until one succeeds, merge.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/classify"
	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/record"
)

// Strategy is one extraction approach.
type Strategy interface {
	ID() model.StrategyID
	// Applies reports whether the strategy can read a document of this kind.
	Applies(doc *model.RawDocument) bool
	// Attempt never returns an error; failures are described by the
	// result's Diagnostic.
	Attempt(ctx context.Context, doc *model.RawDocument) model.AttemptResult
}

// RunOptions are the caller's per-document choices.
type RunOptions struct {
	// Delegated opts into the delegated strategy. It still runs only when
	// every local strategy failed.
	Delegated bool
}

// Pipeline holds the ordered strategies. It keeps no per-document state and
// is safe for concurrent use when its strategies are.
type Pipeline struct {
	strategies []Strategy
}

// New creates a Pipeline. Strategies are tried in the given order.
func New(strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies}
}

// Strategies returns the IDs of the configured strategies in order.
func (p *Pipeline) Strategies() []model.StrategyID {
	ids := make([]model.StrategyID, len(p.strategies))
	for i, s := range p.strategies {
		ids[i] = s.ID()
	}
	return ids
}

// Run extracts one document. It always returns a well-formed record; a
// document nothing could read yields success=false with a diagnostic.
func (p *Pipeline) Run(ctx context.Context, filename string, data []byte, opts RunOptions) model.Record {
	doc := model.NewRawDocument(filename, data)
	log := zap.L().With(zap.String("file", filename))

	c := classify.Apply(doc)
	log.Debug("pipeline: classified", zap.String("kind", string(c.Kind)), zap.String("mime", c.SniffedMIME))
	if c.Kind == model.KindRejected {
		log.Warn("pipeline: document rejected", zap.String("reason", c.Reason))
		return record.Rejected(doc, c.Reason)
	}

	var attempts []model.AttemptResult
	for _, s := range p.strategies {
		if s.ID() == model.StrategyDelegated && !opts.Delegated {
			continue
		}
		if !s.Applies(doc) {
			continue
		}
		if ctx.Err() != nil {
			attempts = append(attempts, model.Failed(s.ID(), &model.Diagnostic{
				Kind:    model.ErrInternal,
				Message: fmt.Sprintf("cancelled before attempt: %v", ctx.Err()),
			}))
			break
		}

		a := p.attempt(ctx, s, doc)
		attempts = append(attempts, a)
		if a.Success() {
			break
		}
	}

	r := record.Merge(doc, attempts)
	if r.Success {
		log.Info("pipeline: document extracted",
			zap.String("strategy", string(r.Strategy)),
			zap.String("source", r.Source),
			zap.Int("years", len(r.MultiYearData.Years)),
		)
	} else {
		log.Warn("pipeline: document failed",
			zap.String("kind", string(r.Diagnostic.Kind)),
			zap.String("diagnostic", r.Diagnostic.Message),
		)
	}
	return r
}

// attempt runs one strategy, timing it and turning a panic into a failed
// attempt so the cascade can go on.
func (p *Pipeline) attempt(ctx context.Context, s Strategy, doc *model.RawDocument) (res model.AttemptResult) {
	log := zap.L().With(zap.String("file", doc.Filename), zap.String("strategy", string(s.ID())))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline: strategy panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			res = model.Failed(s.ID(), &model.Diagnostic{
				Kind:    model.ErrInternal,
				Message: fmt.Sprintf("panic: %v", rec),
			})
		}
		res.Strategy = s.ID()
		res.Duration = time.Since(start)

		if res.Success() {
			log.Info("pipeline: strategy succeeded",
				zap.String("source", res.Source),
				zap.Int64("duration_ms", res.Duration.Milliseconds()),
			)
			return
		}
		if res.Diagnostic == nil {
			res.Diagnostic = &model.Diagnostic{Kind: model.ErrInternal, Message: "strategy failed without a diagnostic"}
		}
		log.Info("pipeline: strategy failed",
			zap.String("kind", string(res.Diagnostic.Kind)),
			zap.String("message", res.Diagnostic.Message),
			zap.Int64("duration_ms", res.Duration.Milliseconds()),
		)
	}()

	return s.Attempt(ctx, doc)
}
