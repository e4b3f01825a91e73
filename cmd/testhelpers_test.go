package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fin-extract/internal/config"
	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/pipeline"
	"github.com/sells-group/fin-extract/internal/record"
	"github.com/sells-group/fin-extract/internal/resilience"
	"github.com/sells-group/fin-extract/internal/store"
)

// mockRunner is a testify mock of the runner interface.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, filename string, data []byte, opts pipeline.RunOptions) model.Record {
	args := m.Called(ctx, filename, data, opts)
	return args.Get(0).(model.Record)
}

func okRecord(name string, data []byte) model.Record {
	return record.Merge(model.NewRawDocument(name, data), []model.AttemptResult{{
		Strategy: model.StrategyHeuristic,
		Payload:  &model.HeuristicPayload{ReportYear: "2023", Income: map[string]float64{model.Revenue: 12000}},
		Source:   "text",
	}})
}

func failedRecord(name string, data []byte, retryable bool) model.Record {
	return record.Merge(model.NewRawDocument(name, data), []model.AttemptResult{
		model.Failed(model.StrategyDelegated, &model.Diagnostic{
			Kind:      model.ErrDelegatedService,
			Message:   "upstream 503",
			Retryable: retryable,
		}),
	})
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "records.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// newTestEnv builds a pipeline environment around r with fast retries.
func newTestEnv(t *testing.T, r runner, withStore bool) *pipelineEnv {
	t.Helper()
	env := &pipelineEnv{
		Pipeline: r,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			Multiplier:     1,
		},
	}
	if withStore {
		env.Store = newTestStore(t)
	}
	return env
}
