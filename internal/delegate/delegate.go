// Package delegate extracts a financial record by sending the whole document
// to a generative model and validating the JSON it returns.
package delegate

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fin-extract/internal/classify"
	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/resilience"
)

// Options tune an Extractor.
type Options struct {
	// LenientJSON repairs responses that are not strict JSON.
	LenientJSON bool
	// RequestsPerMinute paces provider calls across all callers of the
	// Extractor. Zero disables pacing.
	RequestsPerMinute int
	// Breaker stops calling a provider that keeps failing. Nil disables it.
	Breaker *resilience.CircuitBreaker
}

// Extractor is the delegated strategy backend. It is safe for concurrent use.
type Extractor struct {
	gen     Generator
	lenient bool
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// New creates an Extractor around gen.
func New(gen Generator, opts Options) *Extractor {
	e := &Extractor{gen: gen, lenient: opts.LenientJSON, breaker: opts.Breaker}
	if opts.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return e
}

// NewBreaker returns the circuit breaker used around a provider. Context
// cancellation does not count as a provider failure.
func NewBreaker(provider string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
		ShouldTrip: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("delegate: circuit state changed",
				zap.String("provider", provider),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

// Provider returns the name of the underlying provider.
func (e *Extractor) Provider() string {
	return e.gen.Name()
}

// Extract sends doc to the provider and decodes the response. Service
// failures carry the DelegatedServiceError kind; unusable responses carry
// DelegatedParseError with the raw response. Nothing is retried here.
func (e *Extractor) Extract(ctx context.Context, doc *model.RawDocument) (*model.DelegatedPayload, error) {
	prompt, err := Prompt(doc.Filename)
	if err != nil {
		return nil, err
	}

	data, mime := attachment(doc)
	req := Request{Filename: doc.Filename, Prompt: prompt, Document: data, MIMEType: mime}

	log := zap.L().With(zap.String("file", doc.Filename), zap.String("provider", e.gen.Name()))

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, serviceError(eris.Wrap(err, "delegate: wait for rate limiter"))
		}
	}

	start := time.Now()
	text, err := e.generate(ctx, req)
	if err != nil {
		log.Warn("delegate: provider call failed", zap.Error(err))
		return nil, serviceError(eris.Wrapf(err, "delegate: %s", e.gen.Name()))
	}
	log.Debug("delegate: response received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(text)),
	)

	p, err := Decode(text, e.lenient)
	if err != nil {
		log.Warn("delegate: response rejected", zap.Error(err))
		return nil, err
	}
	p.Provider = e.gen.Name()
	return p, nil
}

func (e *Extractor) generate(ctx context.Context, req Request) (string, error) {
	if e.breaker == nil {
		return e.gen.Generate(ctx, req)
	}
	return resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (string, error) {
		return e.gen.Generate(ctx, req)
	})
}

// attachment returns the bytes sent alongside the prompt. PDFs go as is;
// markup and text are decoded to UTF-8 first.
func attachment(doc *model.RawDocument) ([]byte, string) {
	if doc.Kind == model.KindPaginatedDocument {
		return doc.Data, "application/pdf"
	}
	if text, ok := classify.DecodeText(doc.Data); ok {
		return []byte(text), "text/plain"
	}
	return doc.Data, "text/plain"
}

func serviceError(err error) error {
	return &model.KindError{
		Kind:      model.ErrDelegatedService,
		Err:       err,
		Retryable: resilience.IsTransient(err) || errors.Is(err, resilience.ErrCircuitOpen),
	}
}
