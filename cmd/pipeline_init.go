package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/pipeline"
	"github.com/sells-group/fin-extract/internal/resilience"
	"github.com/sells-group/fin-extract/internal/store"
)

// runner extracts one document. *pipeline.Pipeline implements it.
type runner interface {
	Run(ctx context.Context, filename string, data []byte, opts pipeline.RunOptions) model.Record
}

// pipelineEnv holds the pipeline and the record store used by the
// extract/batch/serve commands.
type pipelineEnv struct {
	Store    store.Store // nil when the cache is disabled
	Pipeline runner
	Retry    resilience.RetryConfig
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store and builds the
// strategy cascade. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	p, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{Pipeline: p, Retry: resilience.WithRetries(cfg.Delegate.MaxRetries)}
	if cfg.Store.Disabled {
		zap.L().Info("record cache disabled")
		return env, nil
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env.Store = st
	return env, nil
}

// processOptions are the per-document choices of a command.
type processOptions struct {
	Delegated bool
	NoCache   bool
}

// retryableRecord carries a record whose failure is worth another run.
type retryableRecord struct {
	rec model.Record
}

func (e *retryableRecord) Error() string {
	return e.rec.Diagnostic.String()
}

// process returns the record for one document: a cached successful record
// when one exists, otherwise a fresh run that is retried while its
// diagnostic is retryable and then saved.
func (pe *pipelineEnv) process(ctx context.Context, filename string, data []byte, opts processOptions) model.Record {
	log := zap.L().With(zap.String("file", filename))

	if pe.Store != nil && !opts.NoCache {
		cached, err := pe.Store.GetRecordByHash(ctx, model.ContentHash(data))
		switch {
		case err != nil:
			log.Warn("cache lookup failed", zap.Error(err))
		case cached != nil && cached.Success:
			log.Info("using cached record", zap.String("id", cached.ID))
			cached.Filename = filename
			return *cached
		}
	}

	retry := pe.Retry
	retry.ShouldRetry = func(err error) bool {
		var rr *retryableRecord
		return errors.As(err, &rr)
	}
	retry.OnRetry = resilience.RetryLogger(filename)

	rec, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.Record, error) {
		r := pe.Pipeline.Run(ctx, filename, data, pipeline.RunOptions{Delegated: opts.Delegated})
		if !r.Success && r.Diagnostic != nil && r.Diagnostic.Retryable {
			return r, &retryableRecord{rec: r}
		}
		return r, nil
	})
	var rr *retryableRecord
	if errors.As(err, &rr) {
		rec = rr.rec
	}

	if pe.Store != nil {
		if err := pe.Store.SaveRecord(ctx, &rec); err != nil {
			log.Error("save record failed", zap.Error(err))
		}
	}
	return rec
}
