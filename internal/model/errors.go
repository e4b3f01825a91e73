package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a strategy or a whole document failed.
type ErrorKind string

const (
	ErrClassificationRejected ErrorKind = "ClassificationRejected"
	ErrDecodeFailure          ErrorKind = "DecodeFailure"
	ErrMarkupParse            ErrorKind = "MarkupParseError"
	ErrStructureAbsent        ErrorKind = "StructureAbsent"
	ErrEncryptedDocument      ErrorKind = "EncryptedDocument"
	ErrZeroPages              ErrorKind = "ZeroPages"
	ErrNoTextLayer            ErrorKind = "NoTextLayer"
	ErrRecognitionUnavailable ErrorKind = "RecognitionUnavailable"
	ErrRecognitionFailed      ErrorKind = "RecognitionFailed"
	ErrHeuristicEmpty         ErrorKind = "HeuristicEmpty"
	ErrDelegatedService       ErrorKind = "DelegatedServiceError"
	ErrDelegatedParse         ErrorKind = "DelegatedParseError"
	ErrNoData                 ErrorKind = "NoData"
	ErrInternal               ErrorKind = "InternalError"
)

// Diagnostic explains a failed attempt or a failed record.
type Diagnostic struct {
	Kind    ErrorKind `json:"error_kind" yaml:"error_kind"`
	Message string    `json:"message" yaml:"message"`
	// Retryable marks service failures worth re-running by the caller.
	Retryable bool `json:"retryable,omitempty" yaml:"retryable,omitempty"`
	// RawResponse keeps the delegated model output when it could not be parsed.
	RawResponse string `json:"raw_response,omitempty" yaml:"raw_response,omitempty"`
}

func (d *Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// KindError carries an ErrorKind through an error chain so strategies can
// turn Go errors into diagnostics.
type KindError struct {
	Kind        ErrorKind
	Err         error
	Retryable   bool
	RawResponse string
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// NewKindError attaches kind to err.
func NewKindError(kind ErrorKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

// KindOf returns the ErrorKind carried by err, or fallback when the chain has none.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return fallback
}

// DiagnosticFromError converts err into a Diagnostic, using fallback when err
// carries no kind.
func DiagnosticFromError(err error, fallback ErrorKind) *Diagnostic {
	d := &Diagnostic{Kind: fallback, Message: err.Error()}
	var ke *KindError
	if errors.As(err, &ke) {
		d.Kind = ke.Kind
		d.Retryable = ke.Retryable
		d.RawResponse = ke.RawResponse
	}
	return d
}
