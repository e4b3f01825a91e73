package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/pdftext"
)

// --- TextExtractor Mock ---

type mockTextExtractor struct {
	mock.Mock
}

func (m *mockTextExtractor) Extract(ctx context.Context, src pdftext.Source) (*pdftext.Transcript, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pdftext.Transcript), args.Error(1)
}

// --- Recognizer Mock ---

type mockRecognizer struct {
	mock.Mock
	available bool
}

func (m *mockRecognizer) Name() string { return "mockocr" }

func (m *mockRecognizer) Available() bool { return m.available }

func (m *mockRecognizer) Recognize(ctx context.Context, pdfPath string) ([]string, error) {
	args := m.Called(ctx, pdfPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- DelegatedExtractor Mock ---

type mockDelegated struct {
	mock.Mock
}

func (m *mockDelegated) Provider() string { return "mockai" }

func (m *mockDelegated) Extract(ctx context.Context, doc *model.RawDocument) (*model.DelegatedPayload, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DelegatedPayload), args.Error(1)
}

// --- Strategy stub ---

type stubStrategy struct {
	id     model.StrategyID
	result model.AttemptResult
	panics bool
	calls  int
}

func (s *stubStrategy) ID() model.StrategyID { return s.id }

func (s *stubStrategy) Applies(doc *model.RawDocument) bool {
	return doc.Kind != model.KindRejected
}

func (s *stubStrategy) Attempt(context.Context, *model.RawDocument) model.AttemptResult {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.result
}
