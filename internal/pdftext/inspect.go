package pdftext

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
)

// Info is the result of the structural check.
type Info struct {
	Pages     int
	Encrypted bool
}

// Inspector performs the structural check that precedes text extraction.
type Inspector interface {
	Inspect(data []byte) (Info, error)
}

// NativeInspector opens the document with the pure-Go reader. A document
// that cannot be opened without a password counts as encrypted.
type NativeInspector struct{}

// Inspect implements Inspector.
func (NativeInspector) Inspect(data []byte) (info Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pdftext: inspect panicked: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if isEncryption(err) {
			return Info{Encrypted: true}, nil
		}
		return Info{}, eris.Wrap(err, "pdftext: open document")
	}
	return Info{Pages: r.NumPage()}, nil
}

func isEncryption(err error) bool {
	return errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(strings.ToLower(err.Error()), "encrypt")
}

// openReader opens data, converting reader panics into errors.
func openReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("pdftext: open panicked: %v", rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: open document")
	}
	return r, nil
}
