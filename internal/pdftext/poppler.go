package pdftext

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// PopplerEngine runs the poppler pdftotext CLI page by page: raw text order
// first, then bounding-box layout blocks when raw mode yields nothing.
type PopplerEngine struct {
	binPath string
}

// NewPopplerEngine creates a PopplerEngine. If binPath is empty, "pdftotext" is used.
func NewPopplerEngine(binPath string) *PopplerEngine {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PopplerEngine{binPath: binPath}
}

// Name implements Engine.
func (*PopplerEngine) Name() string { return "poppler" }

// Available reports whether the pdftotext binary can be found.
func (p *PopplerEngine) Available() bool {
	_, err := exec.LookPath(p.binPath)
	return err == nil
}

// ExtractPages implements Engine. Without a page count from the structural
// check the whole document is converted at once and split on form feeds.
func (p *PopplerEngine) ExtractPages(ctx context.Context, src Source) ([]string, error) {
	if src.Path == "" {
		return nil, eris.New("pdftext: poppler engine needs a file path")
	}
	if src.Pages <= 0 {
		return p.wholeDocument(ctx, src.Path)
	}

	pages := make([]string, 0, src.Pages)
	for i := 1; i <= src.Pages; i++ {
		raw, err := p.run(ctx, i, "-raw", src.Path)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) != "" {
			pages = append(pages, raw)
			continue
		}

		layout, err := p.run(ctx, i, "-bbox-layout", src.Path)
		if err != nil {
			return nil, err
		}
		text, err := BlocksText(layout)
		if err != nil {
			return nil, err
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// wholeDocument runs pdftotext once over every page. pdftotext ends each
// page with a form feed.
func (p *PopplerEngine) wholeDocument(ctx context.Context, path string) ([]string, error) {
	out, err := p.output(ctx, "-raw", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, eris.Wrap(err, "pdftext: pdftotext -raw failed for whole document")
	}
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}

func (p *PopplerEngine) run(ctx context.Context, page int, mode, path string) (string, error) {
	n := strconv.Itoa(page)
	out, err := p.output(ctx, "-f", n, "-l", n, mode, "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", eris.Wrapf(err, "pdftext: pdftotext %s failed for page %d", mode, page)
	}
	return out, nil
}

func (p *PopplerEngine) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "%s", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

type block struct {
	yMin float64
	text string
}

// BlocksText reads pdftotext -bbox-layout output and joins its blocks top to
// bottom, one line of words per layout line.
func BlocksText(xhtml string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(xhtml))
	if err != nil {
		return "", eris.Wrap(err, "pdftext: parse bbox layout")
	}

	var blocks []block
	doc.Find("block").Each(func(_ int, s *goquery.Selection) {
		y, _ := strconv.ParseFloat(s.AttrOr("ymin", "0"), 64)

		var lines []string
		s.Find("line").Each(func(_ int, l *goquery.Selection) {
			var words []string
			l.Find("word").Each(func(_ int, w *goquery.Selection) {
				if t := strings.TrimSpace(w.Text()); t != "" {
					words = append(words, t)
				}
			})
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		})
		if len(lines) > 0 {
			blocks = append(blocks, block{yMin: y, text: strings.Join(lines, "\n")})
		}
	})

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].yMin < blocks[j].yMin })

	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.text
	}
	return strings.Join(parts, "\n"), nil
}
