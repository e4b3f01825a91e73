package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// MediaKind is the routing decision made by the format classifier.
type MediaKind string

const (
	KindStructuredMarkup  MediaKind = "structured_markup"
	KindPaginatedDocument MediaKind = "paginated_document"
	KindPlainText         MediaKind = "plain_text"
	KindRejected          MediaKind = "rejected"
)

// PageSeparator joins page transcripts so downstream heuristics keep page boundaries.
const PageSeparator = "\n\n=== НОВАЯ СТРАНИЦА ===\n\n"

// RawDocument is a single input document. It is created by the caller and
// read, never modified, by every strategy.
type RawDocument struct {
	Filename    string
	Data        []byte
	Kind        MediaKind
	SniffedMIME string
	Hash        string
}

// NewRawDocument wraps the given bytes and computes the content hash used
// for caller-side caching.
func NewRawDocument(filename string, data []byte) *RawDocument {
	return &RawDocument{
		Filename: filename,
		Data:     data,
		Hash:     ContentHash(data),
	}
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Classification is the classifier's verdict for a document.
type Classification struct {
	Kind        MediaKind
	SniffedMIME string
	// Reason is set when Kind is KindRejected.
	Reason string
}
