// Package classify routes raw documents to the extraction strategies that can read them.
package classify

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/fin-extract/internal/model"
)

var (
	pdfMagic = []byte("%PDF")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// previewBytes is how much of a rejected document is echoed in the diagnostic.
const previewBytes = 16

// Classify inspects the leading bytes of data and decides how it can be extracted.
func Classify(data []byte) model.Classification {
	mt := mimetype.Detect(data)
	sniffed := mt.String()

	// The sniffer also accepts a PDF header behind a BOM or a newline.
	if bytes.HasPrefix(data, pdfMagic) || mt.Is("application/pdf") {
		return model.Classification{Kind: model.KindPaginatedDocument, SniffedMIME: sniffed}
	}

	text, ok := DecodeText(data)
	if !ok {
		return rejected(data, sniffed)
	}

	head := bytes.TrimLeft([]byte(text), " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<")):
		return model.Classification{Kind: model.KindStructuredMarkup, SniffedMIME: sniffed}
	case len(head) > 0:
		return model.Classification{Kind: model.KindPlainText, SniffedMIME: sniffed}
	default:
		return rejected(data, sniffed)
	}
}

// Apply classifies doc in place.
func Apply(doc *model.RawDocument) model.Classification {
	c := Classify(doc.Data)
	doc.Kind = c.Kind
	doc.SniffedMIME = c.SniffedMIME
	return c
}

// DecodeText returns data as UTF-8 text. Valid UTF-8 is returned as is (minus
// a BOM); anything else is read as windows-1251. Binary content with control
// bytes is refused.
func DecodeText(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if hasControlBytes(data) {
		return "", false
	}
	if utf8.Valid(data) {
		return string(data), true
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func hasControlBytes(data []byte) bool {
	for _, b := range data {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			return true
		}
	}
	return false
}

func rejected(data []byte, sniffed string) model.Classification {
	n := min(len(data), previewBytes)
	return model.Classification{
		Kind:        model.KindRejected,
		SniffedMIME: sniffed,
		Reason:      fmt.Sprintf("unrecognized format (sniffed %s), first bytes: % x", sniffed, data[:n]),
	}
}
