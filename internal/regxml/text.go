package regxml

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Text dumps markup as "tag: text" lines, one per element carrying text or
// attributes, so the heuristic extractor can scan it. Markup that is not
// well-formed XML is read as HTML instead.
func Text(data []byte) (string, error) {
	utf8Data := decodeAny(data)

	root, err := parseTree(utf8Data)
	if err != nil {
		return htmlText(utf8Data)
	}

	var b strings.Builder
	root.walk(func(n *node) {
		if n == root {
			return
		}
		text := strings.TrimSpace(n.text)
		attrs := attrString(n.attrs)
		switch {
		case text != "" && attrs != "":
			fmt.Fprintf(&b, "%s: %s %s\n", n.name, text, attrs)
		case text != "":
			fmt.Fprintf(&b, "%s: %s\n", n.name, text)
		case attrs != "":
			fmt.Fprintf(&b, "%s: %s\n", n.name, attrs)
		}
	})
	return b.String(), nil
}

func attrString(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.TrimSpace(attrs[k]))
	}
	return strings.Join(parts, " ")
}

// htmlText renders HTML body text, with table rows flattened to pipe-delimited lines.
func htmlText(utf8Data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Data))
	if err != nil {
		return "", eris.Wrap(err, "regxml: parse html")
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var rows []string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, td *goquery.Selection) {
			if t := collapse(td.Text()); t != "" {
				cells = append(cells, t)
			}
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	doc.Find("table").Remove()

	var lines []string
	for _, l := range strings.Split(doc.Text(), "\n") {
		if t := collapse(l); t != "" {
			lines = append(lines, t)
		}
	}
	lines = append(lines, rows...)
	return strings.Join(lines, "\n"), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
