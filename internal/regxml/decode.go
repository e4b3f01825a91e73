package regxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/fin-extract/internal/model"
)

const registryEncoding = "windows-1251"

var declEncoding = regexp.MustCompile(`(?i)^\s*<\?xml[^>]*encoding\s*=\s*["']([^"']+)["']`)

// declaredEncoding returns the encoding named in the XML declaration, if any.
func declaredEncoding(data []byte) string {
	head := data[:min(len(data), 512)]
	if m := declEncoding.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}

// decodeRegistry converts registry markup to UTF-8. Only windows-1251 is
// accepted; a different declared encoding or a byte outside the code page
// is a decode failure.
func decodeRegistry(data []byte) ([]byte, error) {
	if label := declaredEncoding(data); label != "" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, model.NewKindError(model.ErrDecodeFailure, eris.Wrapf(err, "regxml: unknown encoding %q", label))
		}
		if name, _ := htmlindex.Name(enc); name != registryEncoding {
			return nil, model.NewKindError(model.ErrDecodeFailure, eris.Errorf("regxml: unsupported encoding %q, want %s", label, registryEncoding))
		}
	}

	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return nil, model.NewKindError(model.ErrDecodeFailure, eris.Wrap(err, "regxml: decode windows-1251"))
	}
	if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
		return nil, model.NewKindError(model.ErrDecodeFailure, eris.Errorf("regxml: byte outside %s near offset %d", registryEncoding, i))
	}
	return out, nil
}

// decodeAny converts markup in any declared encoding to UTF-8, guessing
// windows-1251 for undeclared non-UTF-8 input.
func decodeAny(data []byte) []byte {
	if label := declaredEncoding(data); label != "" {
		if enc, err := htmlindex.Get(label); err == nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return out
			}
		}
	}
	if utf8.Valid(data) {
		return data
	}
	if out, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		return out
	}
	return data
}

// node is a parsed element.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

// attr returns the named attribute or "".
func (n *node) attr(name string) string {
	return strings.TrimSpace(n.attrs[name])
}

// find returns the first descendant named name, in document order.
func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if d := c.find(name); d != nil {
			return d
		}
	}
	return nil
}

// child returns the first direct child named name.
func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// walk visits n and its descendants depth first.
func (n *node) walk(fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// parseTree builds the element tree from UTF-8 markup. The declaration may
// still name the original charset, so the charset reader passes input through.
func parseTree(utf8Data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(utf8Data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	root := &node{name: "#document"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.NewKindError(model.ErrMarkupParse, eris.Wrap(err, "regxml: read token"))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.text += string(t)
		}
	}

	if len(root.children) == 0 {
		return nil, model.NewKindError(model.ErrMarkupParse, eris.New("regxml: no root element"))
	}
	return root, nil
}
