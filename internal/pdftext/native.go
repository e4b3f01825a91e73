package pdftext

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	rowTolerance    = 2.0
	spaceGapFactor  = 0.25
	cellGapFactor   = 2.0
	defaultFontSize = 10.0
)

// NativeEngine reads the text layer with the pure-Go PDF reader. Each page is
// its plain text followed by any table rows found on it, rendered as
// pipe-delimited lines.
type NativeEngine struct{}

// NewNativeEngine returns the pure-Go engine.
func NewNativeEngine() *NativeEngine { return &NativeEngine{} }

// Name implements Engine.
func (*NativeEngine) Name() string { return "native" }

// Available implements Engine. The engine has no external dependencies.
func (*NativeEngine) Available() bool { return true }

// ExtractPages implements Engine.
func (*NativeEngine) ExtractPages(ctx context.Context, src Source) ([]string, error) {
	r, err := openReader(src.Data)
	if err != nil {
		return nil, err
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pdftext: native extraction cancelled")
		}
		pages = append(pages, nativePage(r, i))
	}
	return pages, nil
}

func nativePage(r *pdf.Reader, num int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Warn("pdftext: native page panicked", zap.Int("page", num), zap.Any("panic", rec))
			text = ""
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return ""
	}

	plain, err := p.GetPlainText(nil)
	if err != nil {
		zap.L().Debug("pdftext: plain text failed", zap.Int("page", num), zap.Error(err))
	}

	rows := TableRows(p.Content().Text)
	if len(rows) == 0 {
		return plain
	}
	return strings.TrimRight(plain, "\n") + "\n" + strings.Join(rows, "\n")
}

// TableRows groups positioned glyphs into lines, splits each line into cells
// at wide horizontal gaps, and renders lines with at least two cells and a
// digit as "cell | cell | cell".
func TableRows(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var lines [][]pdf.Text
	for _, t := range sorted {
		if n := len(lines); n > 0 && math.Abs(lines[n-1][0].Y-t.Y) <= rowTolerance {
			lines[n-1] = append(lines[n-1], t)
			continue
		}
		lines = append(lines, []pdf.Text{t})
	}

	var rows []string
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		cells := splitCells(line)
		if len(cells) < 2 || !strings.ContainsFunc(strings.Join(cells, ""), unicode.IsDigit) {
			continue
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return rows
}

func splitCells(line []pdf.Text) []string {
	var cells []string
	var cur strings.Builder
	prevEnd := math.Inf(-1)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}

	for _, t := range line {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		gap := t.X - prevEnd
		switch {
		case gap > cellGapFactor*size:
			flush()
		case gap > spaceGapFactor*size:
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		prevEnd = math.Max(prevEnd, t.X+t.W)
	}
	flush()
	return cells
}
